package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem is one provider-side line. Unit amounts are minor units; the
// provider multiplies by quantity, so the lines sum to the local subtotal.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

// DiscountSpec is the provider representation of a percent discount.
// Fixed-amount discounts have no provider representation here; the local
// total still honours them.
type DiscountSpec struct {
	Name       string
	PercentOff decimal.Decimal
}

// TaxRateSpec is the provider representation of a percent tax. The rate is
// attached to the last line item only, not prorated across lines.
type TaxRateSpec struct {
	Name       string
	Percentage decimal.Decimal
}

// SessionRequest carries everything needed to open a hosted checkout
// session with a provider.
type SessionRequest struct {
	Currency   string
	LineItems  []LineItem
	Discount   *DiscountSpec
	TaxRate    *TaxRateSpec
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is the minimal provider response: an opaque session id plus the
// hosted payment page URL when the provider returns one.
type Session struct {
	ID  string
	URL string
}

// Provider abstracts the external payment gateway. Implementations must
// honour context cancellation and bound every network call with a timeout.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// GatewayError wraps any failure talking to the payment provider so
// callers can treat all provider errors uniformly.
type GatewayError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s gateway: %s", e.Provider, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s gateway: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s gateway error", e.Provider)
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsGatewayError reports whether err is (or wraps) a GatewayError.
func IsGatewayError(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}
