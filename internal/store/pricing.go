package store

import "github.com/shopspring/decimal"

// Pricing policy: flat shipping unless the subtotal clears the free
// threshold, flat-rate tax on the subtotal.
var (
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingCost      = decimal.NewFromInt(10)
	taxRate               = decimal.NewFromFloat(0.10)
)

type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	TotalAmount  decimal.Decimal
}

func ComputeTotals(subtotal decimal.Decimal) Totals {
	shipping := flatShippingCost
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(taxRate).Round(2)

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		TotalAmount:  subtotal.Add(shipping).Add(tax),
	}
}
