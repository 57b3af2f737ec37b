package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-api/internal/catalog"
	"github.com/noah-isme/checkout-api/internal/pricing"
)

type stubRules struct {
	rules map[uuid.UUID]pricing.Rule
}

func (s *stubRules) InsertRule(_ context.Context, r pricing.Rule) (pricing.Rule, error) {
	s.rules[r.ID] = r
	return r, nil
}

func (s *stubRules) ListRules(context.Context, *pricing.Role) ([]pricing.Rule, error) {
	return nil, nil
}

func (s *stubRules) GetRule(_ context.Context, id uuid.UUID) (pricing.Rule, error) {
	r, ok := s.rules[id]
	if !ok {
		return pricing.Rule{}, pricing.ErrRuleNotFound
	}
	return r, nil
}

type stubStore struct {
	rules    *stubRules
	items    map[uuid.UUID]catalog.Item
	orders   map[uuid.UUID]*Order
	attached []pricing.Role
}

func newStubStore() *stubStore {
	return &stubStore{
		rules:  &stubRules{rules: map[uuid.UUID]pricing.Rule{}},
		items:  map[uuid.UUID]catalog.Item{},
		orders: map[uuid.UUID]*Order{},
	}
}

func (s *stubStore) InsertOrder(context.Context) (Order, error) {
	ord := Order{ID: uuid.New(), Status: StatusEmpty, CreatedAt: time.Now()}
	s.orders[ord.ID] = &ord
	return ord, nil
}

func (s *stubStore) CreateOrderWithLines(_ context.Context, params CreateParams) (Order, error) {
	ord := Order{ID: uuid.New(), Status: StatusPriced, CreatedAt: time.Now()}
	for _, in := range params.Lines {
		item, ok := s.items[in.ItemID]
		if !ok {
			return Order{}, &UnknownItemError{ItemID: in.ItemID}
		}
		ord.Lines = append(ord.Lines, Line{ID: uuid.New(), Item: item, Quantity: in.Quantity})
	}
	s.orders[ord.ID] = &ord
	return ord, nil
}

func (s *stubStore) GetOrder(_ context.Context, id uuid.UUID) (Order, error) {
	ord, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *ord, nil
}

func (s *stubStore) AddLine(_ context.Context, orderID, itemID uuid.UUID, quantity int32) error {
	ord, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if ord.SessionAttached() {
		return ErrSessionAttached
	}
	item, ok := s.items[itemID]
	if !ok {
		return &UnknownItemError{ItemID: itemID}
	}
	ord.Lines = append(ord.Lines, Line{ID: uuid.New(), Item: item, Quantity: quantity})
	ord.Status = StatusPriced
	return nil
}

func (s *stubStore) AttachRule(_ context.Context, orderID uuid.UUID, role pricing.Role, ruleID uuid.UUID) error {
	ord, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	rule := s.rules.rules[ruleID]
	if role == pricing.RoleTax {
		ord.Tax = &rule
	} else {
		ord.Discount = &rule
	}
	s.attached = append(s.attached, role)
	return nil
}

func (s *stubStore) AttachSession(_ context.Context, orderID uuid.UUID, sessionID string) error {
	ord, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	ord.PaymentSessionID = sessionID
	ord.Status = StatusSessionCreated
	return nil
}

func (s *stubStore) SetStatus(_ context.Context, orderID uuid.UUID, status Status) error {
	ord, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	ord.Status = status
	return nil
}

func (s *stubStore) DeleteAbandonedDrafts(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newService(store *stubStore) *Service {
	return &Service{Store: store, Rules: &pricing.Service{Store: store.rules}}
}

func addRule(store *stubStore, role pricing.Role, active bool) pricing.Rule {
	rule := pricing.Rule{
		ID:       uuid.New(),
		Role:     role,
		Name:     "rule",
		Kind:     pricing.KindPercent,
		Value:    decimal.NewFromInt(10),
		IsActive: active,
	}
	store.rules.rules[rule.ID] = rule
	return rule
}

func TestAddLineRejectsZeroQuantity(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	ord, err := svc.CreateDraft(context.Background())
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), ord.ID, uuid.New(), 0)
	var badQty *InvalidQuantityError
	require.ErrorAs(t, err, &badQty)
	require.Equal(t, int32(0), badQty.Quantity)
}

func TestAddLineAfterSessionRejected(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	ord, err := svc.CreateDraft(context.Background())
	require.NoError(t, err)

	item := catalog.Item{ID: uuid.New(), Name: "Tee", UnitPrice: 1999}
	store.items[item.ID] = item
	require.NoError(t, store.AttachSession(context.Background(), ord.ID, "cs_x"))

	_, err = svc.AddLine(context.Background(), ord.ID, item.ID, 1)
	require.ErrorIs(t, err, ErrSessionAttached)
}

func TestAttachRuleIgnoresStaleReference(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	ord, err := svc.CreateDraft(context.Background())
	require.NoError(t, err)

	got, err := svc.AttachRule(context.Background(), ord.ID, pricing.RoleDiscount, uuid.New())
	require.NoError(t, err)
	require.Nil(t, got.Discount)
	require.Empty(t, store.attached)

	inactive := addRule(store, pricing.RoleDiscount, false)
	got, err = svc.AttachRule(context.Background(), ord.ID, pricing.RoleDiscount, inactive.ID)
	require.NoError(t, err)
	require.Nil(t, got.Discount)
	require.Empty(t, store.attached)
}

func TestAttachRuleSkipsRoleMismatch(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	ord, err := svc.CreateDraft(context.Background())
	require.NoError(t, err)

	taxRule := addRule(store, pricing.RoleTax, true)
	got, err := svc.AttachRule(context.Background(), ord.ID, pricing.RoleDiscount, taxRule.ID)
	require.NoError(t, err)
	require.Nil(t, got.Discount)
	require.Empty(t, store.attached)
}

func TestAttachRuleAppliesActiveMatch(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	ord, err := svc.CreateDraft(context.Background())
	require.NoError(t, err)

	discount := addRule(store, pricing.RoleDiscount, true)
	got, err := svc.AttachRule(context.Background(), ord.ID, pricing.RoleDiscount, discount.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Discount)
	require.Equal(t, discount.ID, got.Discount.ID)
}

func TestCreateWithLinesRequiresLines(t *testing.T) {
	svc := newService(newStubStore())
	_, err := svc.CreateWithLines(context.Background(), CreateParams{})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestCreateWithLinesValidatesQuantities(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	item := catalog.Item{ID: uuid.New(), Name: "Tee", UnitPrice: 1999}
	store.items[item.ID] = item

	_, err := svc.CreateWithLines(context.Background(), CreateParams{
		Lines: []LineInput{
			{ItemID: item.ID, Quantity: 1},
			{ItemID: item.ID, Quantity: -2},
		},
	})
	var badQty *InvalidQuantityError
	require.ErrorAs(t, err, &badQty)
	require.Empty(t, store.orders)
}

func TestDuplicateItemsStaySeparateLines(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	item := catalog.Item{ID: uuid.New(), Name: "Tee", UnitPrice: 1999}
	store.items[item.ID] = item

	ord, err := svc.CreateWithLines(context.Background(), CreateParams{
		Lines: []LineInput{
			{ItemID: item.ID, Quantity: 1},
			{ItemID: item.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, ord.Lines, 2)
	require.Equal(t, pricing.Money(3*1999), ord.Subtotal())
}
