package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/checkout-api/internal/resilience"
)

const defaultStripeBaseURL = "https://api.stripe.com"

// Stripe implements the Provider interface against the Stripe Checkout
// REST API. Requests are form encoded per the Stripe wire format; no
// vendor SDK is used. The client it is given bounds every call with a
// timeout and a circuit breaker.
type Stripe struct {
	SecretKey string
	BaseURL   string
	Client    *resilience.HTTPClient
}

type stripeObject struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a hosted Checkout session. Percent discounts become
// a one-off coupon, percent taxes become a tax rate attached to the last
// line item; both are created on the fly before the session call.
func (s Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if len(req.LineItems) == 0 {
		return Session{}, &GatewayError{Provider: "stripe", Message: "no line items"}
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}
	for i, item := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.Description)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}

	if req.Discount != nil {
		couponID, err := s.createCoupon(ctx, *req.Discount)
		if err != nil {
			return Session{}, err
		}
		form.Set("discounts[0][coupon]", couponID)
	}
	if req.TaxRate != nil {
		taxRateID, err := s.createTaxRate(ctx, *req.TaxRate)
		if err != nil {
			return Session{}, err
		}
		// the rate goes on the last line only
		last := len(req.LineItems) - 1
		form.Set(fmt.Sprintf("line_items[%d][tax_rates][0]", last), taxRateID)
	}
	for key, value := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	obj, err := s.post(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: obj.ID, URL: obj.URL}, nil
}

func (s Stripe) createCoupon(ctx context.Context, spec DiscountSpec) (string, error) {
	form := url.Values{}
	form.Set("name", spec.Name)
	form.Set("percent_off", spec.PercentOff.String())
	form.Set("duration", "once")
	obj, err := s.post(ctx, "/v1/coupons", form)
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

func (s Stripe) createTaxRate(ctx context.Context, spec TaxRateSpec) (string, error) {
	form := url.Values{}
	form.Set("display_name", spec.Name)
	form.Set("percentage", spec.Percentage.String())
	form.Set("inclusive", "false")
	obj, err := s.post(ctx, "/v1/tax_rates", form)
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

func (s Stripe) post(ctx context.Context, path string, form url.Values) (stripeObject, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		base = defaultStripeBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return stripeObject{}, &GatewayError{Provider: "stripe", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.do(ctx, req)
	if err != nil {
		return stripeObject{}, &GatewayError{Provider: "stripe", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return stripeObject{}, &GatewayError{Provider: "stripe", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var stripeErr stripeErrorBody
		if err := json.Unmarshal(body, &stripeErr); err == nil && stripeErr.Error.Message != "" {
			return stripeObject{}, &GatewayError{
				Provider: "stripe",
				Code:     stripeErr.Error.Code,
				Message:  stripeErr.Error.Message,
			}
		}
		return stripeObject{}, &GatewayError{
			Provider: "stripe",
			Message:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	var obj stripeObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return stripeObject{}, &GatewayError{Provider: "stripe", Err: err}
	}
	if obj.ID == "" {
		return stripeObject{}, &GatewayError{Provider: "stripe", Message: "response missing object id"}
	}
	return obj, nil
}

func (s Stripe) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if s.Client != nil {
		return s.Client.Do(ctx, req)
	}
	return http.DefaultClient.Do(req)
}
