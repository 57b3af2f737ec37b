package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func percentRule(role Role, value string) *Rule {
	return &Rule{Role: role, Kind: KindPercent, Value: decimal.RequireFromString(value), IsActive: true}
}

func fixedRule(role Role, value string) *Rule {
	return &Rule{Role: role, Kind: KindFixed, Value: decimal.RequireFromString(value), IsActive: true}
}

func TestSubtotal(t *testing.T) {
	// item at 19.99 twice
	lines := []Line{{Qty: 2, UnitPrice: 1999}}
	if got := Subtotal(lines); got != 3998 {
		t.Fatalf("expected subtotal 3998, got %d", got)
	}
}

func TestSubtotalSkipsNonPositiveQty(t *testing.T) {
	lines := []Line{{Qty: 0, UnitPrice: 500}, {Qty: -1, UnitPrice: 500}, {Qty: 1, UnitPrice: 500}}
	if got := Subtotal(lines); got != 500 {
		t.Fatalf("expected subtotal 500, got %d", got)
	}
}

func TestComputePercentDiscountFloors(t *testing.T) {
	// 10% of 3998 is 399.8, floored to 399
	summary := Compute(3998, percentRule(RoleDiscount, "10"), nil)
	if summary.Discount != 399 {
		t.Fatalf("expected discount 399, got %d", summary.Discount)
	}
	if summary.Total != 3599 {
		t.Fatalf("expected total 3599, got %d", summary.Total)
	}
}

func TestComputeTaxOnPostDiscountAmount(t *testing.T) {
	// 8% of 3599 is 287.92, floored to 287
	summary := Compute(3998, percentRule(RoleDiscount, "10"), percentRule(RoleTax, "8"))
	if summary.Discount != 399 {
		t.Fatalf("expected discount 399, got %d", summary.Discount)
	}
	if summary.Tax != 287 {
		t.Fatalf("expected tax 287, got %d", summary.Tax)
	}
	if summary.Total != 3886 {
		t.Fatalf("expected total 3886, got %d", summary.Total)
	}
}

func TestComputeFixedDiscountCapped(t *testing.T) {
	// 100.00 fixed discount against a 39.98 subtotal is capped
	summary := Compute(3998, fixedRule(RoleDiscount, "100"), nil)
	if summary.Discount != 3998 {
		t.Fatalf("expected discount capped at 3998, got %d", summary.Discount)
	}
	if summary.Total != 0 {
		t.Fatalf("expected total 0, got %d", summary.Total)
	}
}

func TestComputeFixedTaxNotCapped(t *testing.T) {
	summary := Compute(100, nil, fixedRule(RoleTax, "5"))
	if summary.Tax != 500 {
		t.Fatalf("expected tax 500, got %d", summary.Tax)
	}
	if summary.Total != 600 {
		t.Fatalf("expected total 600, got %d", summary.Total)
	}
}

func TestComputeInactiveRuleIgnored(t *testing.T) {
	rule := percentRule(RoleDiscount, "50")
	rule.IsActive = false
	summary := Compute(3998, rule, nil)
	if summary.Discount != 0 {
		t.Fatalf("expected zero discount for inactive rule, got %d", summary.Discount)
	}
	if summary.Total != 3998 {
		t.Fatalf("expected total 3998, got %d", summary.Total)
	}
}

func TestComputeNilRules(t *testing.T) {
	summary := Compute(1234, nil, nil)
	if summary != (Summary{Subtotal: 1234, Total: 1234}) {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestComputeTotalNeverNegative(t *testing.T) {
	cases := []struct {
		subtotal Money
		discount *Rule
		tax      *Rule
	}{
		{0, percentRule(RoleDiscount, "100"), nil},
		{1, fixedRule(RoleDiscount, "999999"), nil},
		{999, percentRule(RoleDiscount, "100"), percentRule(RoleTax, "21")},
		{50, fixedRule(RoleDiscount, "10"), fixedRule(RoleTax, "0.01")},
	}
	for _, tc := range cases {
		summary := Compute(tc.subtotal, tc.discount, tc.tax)
		if summary.Total < 0 {
			t.Fatalf("total went negative: %+v", summary)
		}
		if summary.Discount > summary.Subtotal {
			t.Fatalf("discount exceeds subtotal: %+v", summary)
		}
		if summary.Total < summary.Subtotal-summary.Discount {
			t.Fatalf("tax went negative: %+v", summary)
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	discount := percentRule(RoleDiscount, "12.5")
	tax := percentRule(RoleTax, "8.25")
	first := Compute(123457, discount, tax)
	second := Compute(123457, discount, tax)
	if first != second {
		t.Fatalf("expected identical summaries, got %+v and %+v", first, second)
	}
}

func TestPercentDiscountNeverExceedsBase(t *testing.T) {
	for _, subtotal := range []Money{0, 1, 99, 100, 101, 3998, 1_000_000} {
		for _, pct := range []string{"0", "1", "33.33", "50", "99.99", "100"} {
			d := percentRule(RoleDiscount, pct).Apply(subtotal)
			if d > subtotal {
				t.Fatalf("discount %d exceeds subtotal %d at %s%%", d, subtotal, pct)
			}
			if d < 0 {
				t.Fatalf("discount %d negative at %s%%", d, pct)
			}
		}
	}
}
