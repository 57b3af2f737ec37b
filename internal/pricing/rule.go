package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role discriminates what a rule does to an amount: a discount removes from
// it, a tax adds to it.
type Role string

const (
	RoleDiscount Role = "discount"
	RoleTax      Role = "tax"
)

// Kind discriminates how the rule value is interpreted.
type Kind string

const (
	// KindPercent interprets Value as a percentage in [0, 100].
	KindPercent Kind = "percent"
	// KindFixed interprets Value as a major-unit amount.
	KindFixed Kind = "fixed"
)

// Rule is a single pricing rule. Discounts and taxes share the same shape;
// only the role changes how the computed amount composes into a total.
type Rule struct {
	ID          uuid.UUID       `json:"id"`
	Role        Role            `json:"role"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Apply computes the amount this rule removes from (discount) or adds to
// (tax) the given base amount. A nil or inactive rule contributes nothing.
//
// Percent rules floor the result so a fractional minor unit is never
// credited to the customer. Fixed discounts are capped at the base amount
// so a total can never go negative; fixed taxes are added as-is.
func (r *Rule) Apply(base Money) Money {
	if r == nil || !r.IsActive {
		return 0
	}
	if base < 0 {
		base = 0
	}

	var amount Money
	switch r.Kind {
	case KindPercent:
		amount = decimal.NewFromInt(base).Mul(r.Value).Div(hundred).Floor().IntPart()
	case KindFixed:
		amount = FromMajorUnits(r.Value)
	default:
		return 0
	}
	if amount < 0 {
		return 0
	}
	if r.Role == RoleDiscount && amount > base {
		amount = base
	}
	return amount
}
