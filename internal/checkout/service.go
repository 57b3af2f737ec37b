package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/checkout-api/internal/catalog"
	"github.com/noah-isme/checkout-api/internal/obs"
	"github.com/noah-isme/checkout-api/internal/order"
	"github.com/noah-isme/checkout-api/internal/payment"
	"github.com/noah-isme/checkout-api/internal/pricing"
)

// Service builds provider checkout sessions from priced orders.
//
// Session creation is a two-phase protocol: order and line data commit in
// their own transaction first, then the gateway is called. A gateway
// failure therefore never rolls back committed order data; the order is
// simply marked SESSION_FAILED and can be retried.
type Service struct {
	Orders   *order.Service
	Items    *catalog.Service
	Gateway  payment.Provider
	Provider string

	Currency   string
	SuccessURL string
	CancelURL  string

	Logger zerolog.Logger
}

// BuildSessionRequest translates a priced order into a provider-agnostic
// session request. One provider line item is emitted per order line, so
// the provider-side multiplication sums to the local subtotal. Discount
// and tax representations are emitted for percent rules only: a
// fixed-amount discount would need a negative line item and a fixed tax
// has no per-line rate, so both stay local-only.
func (s *Service) BuildSessionRequest(o *order.Order) payment.SessionRequest {
	lineItems := make([]payment.LineItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		lineItems = append(lineItems, payment.LineItem{
			Name:        line.Item.Name,
			Description: line.Item.Description,
			UnitAmount:  line.Item.UnitPrice,
			Quantity:    int64(line.Quantity),
		})
	}
	req := payment.SessionRequest{
		Currency:   s.Currency,
		LineItems:  lineItems,
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
		Metadata:   map[string]string{"order_id": o.ID.String()},
	}
	if d := o.Discount; d != nil && d.IsActive && d.Kind == pricing.KindPercent {
		req.Discount = &payment.DiscountSpec{Name: d.Name, PercentOff: d.Value}
	}
	if t := o.Tax; t != nil && t.IsActive && t.Kind == pricing.KindPercent {
		req.TaxRate = &payment.TaxRateSpec{Name: t.Name, Percentage: t.Value}
	}
	return req
}

// CheckoutItem opens a session for a single catalog item with quantity
// one, without persisting an order.
func (s *Service) CheckoutItem(ctx context.Context, itemID uuid.UUID) (payment.Session, error) {
	if s == nil || s.Items == nil || s.Gateway == nil {
		return payment.Session{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.CheckoutItem")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", itemID.String()))

	item, err := s.Items.Get(ctx, itemID)
	if err != nil {
		return payment.Session{}, err
	}
	req := payment.SessionRequest{
		Currency: s.Currency,
		LineItems: []payment.LineItem{{
			Name:        item.Name,
			Description: item.Description,
			UnitAmount:  item.UnitPrice,
			Quantity:    1,
		}},
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
	}
	session, err := s.callGateway(ctx, "item", req)
	if err != nil {
		return payment.Session{}, err
	}
	return session, nil
}

// CheckoutOrder creates an order with all its lines atomically, then opens
// a session for it. The order commit and the gateway call are separate
// phases: if the gateway fails, the order and its lines stay committed.
func (s *Service) CheckoutOrder(ctx context.Context, params order.CreateParams) (order.Order, payment.Session, error) {
	if s == nil || s.Orders == nil || s.Gateway == nil {
		return order.Order{}, payment.Session{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.CheckoutOrder")
	defer span.End()

	ord, err := s.Orders.CreateWithLines(ctx, params)
	if err != nil {
		return order.Order{}, payment.Session{}, err
	}
	span.SetAttributes(attribute.String("order.id", ord.ID.String()))
	session, err := s.createSessionFor(ctx, &ord)
	if err != nil {
		return ord, payment.Session{}, err
	}
	return ord, session, nil
}

// CheckoutExisting opens a session for an already assembled draft order.
// Repeated calls are permitted; the most recent session id wins.
func (s *Service) CheckoutExisting(ctx context.Context, orderID uuid.UUID) (order.Order, payment.Session, error) {
	if s == nil || s.Orders == nil || s.Gateway == nil {
		return order.Order{}, payment.Session{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.CheckoutExisting")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	ord, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, payment.Session{}, err
	}
	if len(ord.Lines) == 0 {
		return ord, payment.Session{}, order.ErrNoLines
	}
	session, err := s.createSessionFor(ctx, &ord)
	if err != nil {
		return ord, payment.Session{}, err
	}
	return ord, session, nil
}

func (s *Service) createSessionFor(ctx context.Context, ord *order.Order) (payment.Session, error) {
	store := s.Orders.Store
	if err := store.SetStatus(ctx, ord.ID, order.StatusSessionRequested); err != nil {
		return payment.Session{}, fmt.Errorf("mark session requested: %w", err)
	}
	ord.Status = order.StatusSessionRequested

	session, err := s.callGateway(ctx, "order", s.BuildSessionRequest(ord))
	if err != nil {
		// the order itself stays committed and intact
		if stErr := store.SetStatus(ctx, ord.ID, order.StatusSessionFailed); stErr != nil {
			s.Logger.Error().Err(stErr).Str("order_id", ord.ID.String()).Msg("mark session failed")
		}
		ord.Status = order.StatusSessionFailed
		return payment.Session{}, err
	}

	if err := store.AttachSession(ctx, ord.ID, session.ID); err != nil {
		return payment.Session{}, fmt.Errorf("attach session: %w", err)
	}
	ord.Status = order.StatusSessionCreated
	ord.PaymentSessionID = session.ID
	return session, nil
}

func (s *Service) callGateway(ctx context.Context, mode string, req payment.SessionRequest) (payment.Session, error) {
	provider := s.Provider
	if provider == "" {
		provider = "unknown"
	}
	start := time.Now()
	session, err := s.Gateway.CreateSession(ctx, req)
	if obs.GatewaySessionDuration != nil {
		obs.GatewaySessionDuration.WithLabelValues(provider).Observe(obs.DurationMillis(time.Since(start)))
	}
	result := "created"
	if err != nil {
		result = "failed"
	}
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(provider, mode, result).Inc()
	}
	if err != nil {
		s.Logger.Warn().Err(err).Str("provider", provider).Str("mode", mode).Msg("gateway session failed")
		if payment.IsGatewayError(err) {
			return payment.Session{}, err
		}
		return payment.Session{}, &payment.GatewayError{Provider: provider, Err: err}
	}
	s.Logger.Info().Str("provider", provider).Str("mode", mode).Str("session_id", session.ID).Msg("checkout session created")
	return session, nil
}
