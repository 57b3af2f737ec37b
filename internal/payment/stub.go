package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Stub is a deterministic offline provider for sandbox mode and tests. It
// never performs a network call and accepts every well-formed request.
type Stub struct {
	BaseURL string
}

// CreateSession synthesises a session id so the rest of the checkout flow
// can be exercised without provider credentials.
func (p Stub) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	if len(req.LineItems) == 0 {
		return Session{}, &GatewayError{Provider: "stub", Message: "no line items"}
	}
	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	host := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if host == "" {
		host = "https://checkout-stub.local"
	}
	return Session{ID: id, URL: fmt.Sprintf("%s/pay/%s", host, id)}, nil
}
