package pricing

// Line describes a priced order line used for subtotal calculation.
type Line struct {
	Qty       int32
	UnitPrice Money
}

// Summary aggregates the computed pricing components of an order.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// Subtotal sums unit price times quantity across all lines. Lines with a
// non-positive quantity contribute nothing.
func Subtotal(lines []Line) Money {
	var subtotal Money
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		subtotal += Money(l.Qty) * l.UnitPrice
	}
	return subtotal
}

// Compute derives the full pricing breakdown for a subtotal. The composition
// order is fixed: the discount applies to the subtotal, the tax applies to
// the post-discount amount. Either rule may be nil or inactive, in which
// case it contributes zero.
func Compute(subtotal Money, discount, tax *Rule) Summary {
	if subtotal < 0 {
		subtotal = 0
	}
	d := discount.Apply(subtotal)
	t := tax.Apply(subtotal - d)
	return Summary{
		Subtotal: subtotal,
		Discount: d,
		Tax:      t,
		Total:    subtotal - d + t,
	}
}
