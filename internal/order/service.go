package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/obs"
	"github.com/noah-isme/checkout-api/internal/pricing"
)

// LineInput references an item with a quantity for order creation.
type LineInput struct {
	ItemID   uuid.UUID `json:"itemId"`
	Quantity int32     `json:"quantity"`
}

// CreateParams describes an atomic multi-line order creation.
type CreateParams struct {
	Lines      []LineInput
	DiscountID *uuid.UUID
	TaxID      *uuid.UUID
}

// Store describes the persistence operations the order service relies on.
// All multi-row writes happen inside a single transaction so a concurrent
// reader never observes a partially created order.
type Store interface {
	InsertOrder(ctx context.Context) (Order, error)
	CreateOrderWithLines(ctx context.Context, params CreateParams) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	AddLine(ctx context.Context, orderID, itemID uuid.UUID, quantity int32) error
	AttachRule(ctx context.Context, orderID uuid.UUID, role pricing.Role, ruleID uuid.UUID) error
	AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	SetStatus(ctx context.Context, orderID uuid.UUID, status Status) error
	DeleteAbandonedDrafts(ctx context.Context, before time.Time) (int64, error)
}

// Service implements the order aggregate operations on top of the store.
type Service struct {
	Store Store
	Rules *pricing.Service
}

// CreateDraft opens an empty order.
func (s *Service) CreateDraft(ctx context.Context) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	ord, err := s.Store.InsertOrder(ctx)
	if err != nil {
		return Order{}, err
	}
	countOrderCreated("draft")
	return ord, nil
}

// Get loads an order with its lines and attached rules.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	return s.Store.GetOrder(ctx, id)
}

// AddLine appends a line to a draft order. Quantities below one are
// rejected; duplicate item ids stay separate lines. Orders with an attached
// payment session can no longer change.
func (s *Service) AddLine(ctx context.Context, orderID, itemID uuid.UUID, quantity int32) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	if quantity < 1 {
		return Order{}, &InvalidQuantityError{Quantity: quantity}
	}
	if err := s.Store.AddLine(ctx, orderID, itemID, quantity); err != nil {
		return Order{}, err
	}
	return s.Store.GetOrder(ctx, orderID)
}

// AttachRule attaches a discount or tax rule to the order. A rule id that
// does not resolve to an active rule of the requested role is silently
// ignored: a stale reference must not abort checkout.
func (s *Service) AttachRule(ctx context.Context, orderID uuid.UUID, role pricing.Role, ruleID uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil || s.Rules == nil {
		return Order{}, errors.New("order service not configured")
	}
	rule, err := s.Rules.ResolveActive(ctx, ruleID)
	if err != nil {
		return Order{}, fmt.Errorf("resolve rule: %w", err)
	}
	if rule != nil && rule.Role == role {
		if err := s.Store.AttachRule(ctx, orderID, role, rule.ID); err != nil {
			return Order{}, err
		}
	}
	return s.Store.GetOrder(ctx, orderID)
}

// CreateWithLines creates an order with all lines and optional rule
// references in one transaction. Any unknown item id rolls the whole
// creation back; no partial order is ever persisted.
func (s *Service) CreateWithLines(ctx context.Context, params CreateParams) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	if len(params.Lines) == 0 {
		return Order{}, ErrNoLines
	}
	for _, line := range params.Lines {
		if line.Quantity < 1 {
			return Order{}, &InvalidQuantityError{Quantity: line.Quantity}
		}
	}
	ord, err := s.Store.CreateOrderWithLines(ctx, params)
	if err != nil {
		return Order{}, err
	}
	countOrderCreated("checkout")
	return ord, nil
}

func countOrderCreated(path string) {
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(path).Inc()
	}
}
