package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/catalog"
	"github.com/noah-isme/checkout-api/internal/pricing"
)

// Status tracks where an order is in the checkout session lifecycle.
type Status string

const (
	// StatusEmpty is a freshly created draft with no lines.
	StatusEmpty Status = "EMPTY"
	// StatusPriced has at least one line and a computable total.
	StatusPriced Status = "PRICED"
	// StatusSessionRequested marks a checkout session call in flight.
	StatusSessionRequested Status = "SESSION_REQUESTED"
	// StatusSessionCreated has an attached payment session id.
	StatusSessionCreated Status = "SESSION_CREATED"
	// StatusSessionFailed records a gateway failure; order data is intact.
	StatusSessionFailed Status = "SESSION_FAILED"
)

// Sentinel errors for order lookups and lifecycle violations.
var (
	ErrNotFound = errors.New("order not found")
	// ErrSessionAttached rejects mutation after a payment session id has
	// been attached; only the paid flag may change from then on.
	ErrSessionAttached = errors.New("order already has a payment session")
	ErrNoLines         = errors.New("order has no lines")
)

// UnknownItemError names the offending item id when a line references an
// item that does not exist.
type UnknownItemError struct {
	ItemID uuid.UUID
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// InvalidQuantityError rejects line quantities below one.
type InvalidQuantityError struct {
	Quantity int32
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

// Line couples an item reference with a quantity. The same item may appear
// on several lines; lines are never merged.
type Line struct {
	ID       uuid.UUID    `json:"id"`
	Item     catalog.Item `json:"item"`
	Quantity int32        `json:"quantity"`
}

// Order is the cart aggregate: an ordered sequence of lines plus weak
// references to at most one discount and one tax rule. All monetary
// figures are derived on demand, never cached, so swapping lines or rules
// before a session is created keeps them consistent.
type Order struct {
	ID               uuid.UUID     `json:"id"`
	CreatedAt        time.Time     `json:"createdAt"`
	Lines            []Line        `json:"lines"`
	Discount         *pricing.Rule `json:"discount,omitempty"`
	Tax              *pricing.Rule `json:"tax,omitempty"`
	Status           Status        `json:"status"`
	IsPaid           bool          `json:"isPaid"`
	PaymentSessionID string        `json:"paymentSessionId,omitempty"`
}

// Subtotal sums unit price times quantity across all lines.
func (o *Order) Subtotal() pricing.Money {
	lines := make([]pricing.Line, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, pricing.Line{Qty: l.Quantity, UnitPrice: l.Item.UnitPrice})
	}
	return pricing.Subtotal(lines)
}

// DiscountAmount applies the attached discount to the subtotal.
func (o *Order) DiscountAmount() pricing.Money {
	return o.Discount.Apply(o.Subtotal())
}

// TaxAmount applies the attached tax to the post-discount amount.
func (o *Order) TaxAmount() pricing.Money {
	return o.Tax.Apply(o.Subtotal() - o.DiscountAmount())
}

// Total is subtotal minus discount plus tax. It is never negative: the
// discount cap guarantees the post-discount amount stays at or above zero
// and tax only adds.
func (o *Order) Total() pricing.Money {
	return o.Summary().Total
}

// Summary computes the full pricing breakdown in one pass.
func (o *Order) Summary() pricing.Summary {
	return pricing.Compute(o.Subtotal(), o.Discount, o.Tax)
}

// SessionAttached reports whether a payment session id is recorded.
func (o *Order) SessionAttached() bool {
	return o.PaymentSessionID != ""
}
