package form

import (
	"strings"

	"github.com/audos/intake/invoice"
)

// SectionValidity is the per-section verdict the form surfaces as
// checkmarks, plus the aggregate submit gate.
type SectionValidity struct {
	Seller  bool
	Buyer   bool
	Details bool
	Items   bool
	Totals  bool

	// Form is the conjunction of all sections plus an empty errors map.
	Form bool
}

// AggregateValidity computes section and whole-form validity from field
// states, the current numeric line items, and any non-field errors
// (keys like "items" or "totals").
//
// Pure and side-effect free: it re-runs on every keystroke, so it must
// stay cheap. All inputs are read-only snapshots.
func AggregateValidity(fields map[invoice.Field]FieldState, items []invoice.LineItem, extra map[string]string) SectionValidity {
	// fieldOK: non-empty, no displayed error, not remotely rejected.
	fieldOK := func(f invoice.Field) bool {
		st := fields[f]
		return strings.TrimSpace(st.Value) != "" && st.Error == "" && st.Status != StatusInvalid
	}

	var v SectionValidity

	v.Seller = fieldOK(invoice.FieldSellerName) &&
		fieldOK(invoice.FieldSellerRegNo) &&
		fieldOK(invoice.FieldSellerAddress)

	// Buyer address has no remote check, so only its value and error
	// count; the name follows the full rule.
	buyerAddr := fields[invoice.FieldBuyerAddress]
	v.Buyer = fieldOK(invoice.FieldBuyerName) &&
		strings.TrimSpace(buyerAddr.Value) != "" &&
		buyerAddr.Error == ""

	// Due date is optional but must parse when present.
	due := strings.TrimSpace(fields[invoice.FieldDueDate].Value)
	v.Details = fieldOK(invoice.FieldInvoiceDate) &&
		fieldOK(invoice.FieldInvoiceNo) &&
		(due == "" || validDate(due))

	v.Items = len(items) > 0
	for _, li := range items {
		if !li.Valid() {
			v.Items = false
			break
		}
	}

	// Totals are always computable; the section exists as a visual
	// checkpoint and only fails on a totals-specific error.
	v.Totals = extra["totals"] == "" && len(items) > 0

	v.Form = v.Seller && v.Buyer && v.Details && v.Items && v.Totals
	if v.Form {
		for _, st := range fields {
			if st.Error != "" {
				v.Form = false
				break
			}
		}
	}
	if v.Form {
		for _, msg := range extra {
			if msg != "" {
				v.Form = false
				break
			}
		}
	}

	return v
}
