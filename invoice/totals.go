package invoice

import "github.com/shopspring/decimal"

// Totals holds the three computed invoice totals, each rounded to two
// decimal places.
type Totals struct {
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
}

// ComputeTotals sums line amounts and per-line tax across all items.
//
// Rounding happens once, at the aggregate: the three sums are each
// rounded to 2 decimal places (half away from zero), never the individual
// lines. Rounding per line would let line-level error compound; rounding
// the sums keeps e.g. [{2, 500, 10%}, {1, 300, 8%}] at exactly
// 1300.00 / 124.00 / 1424.00.
func ComputeTotals(items []LineItem) Totals {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero

	for _, li := range items {
		subtotal = subtotal.Add(li.Amount())
		taxTotal = taxTotal.Add(li.Tax())
	}

	grandTotal := subtotal.Add(taxTotal)

	// decimal.Round rounds half away from zero, which is what the
	// rules service expects for currency amounts.
	return Totals{
		Subtotal:   subtotal.Round(2),
		TaxTotal:   taxTotal.Round(2),
		GrandTotal: grandTotal.Round(2),
	}
}
