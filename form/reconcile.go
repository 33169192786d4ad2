package form

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/audos/intake/invoice"
)

// Line Item Reconciliation
//
// The line-items table holds two representations of every row:
//
//   - the numeric model ([]invoice.LineItem), the single source of truth
//     that totals, validity and submission read from, and
//   - the raw buffers ([]RawLineItem), free-form text mirroring the
//     numeric cells so a user can type "1.", "", or "0.0" without the
//     model fighting back mid-keystroke.
//
// Every edit updates both sides in one step: the raw buffer verbatim,
// the numeric cell via best-effort parse. The reconciler then records
// the numeric list it just produced as its baseline. When a numeric
// list arrives from outside (a form reset, a loaded draft), comparing
// against that baseline tells an external change apart from this
// component's own update echoing back. Conflating the two corrupts the
// form in one of two ways: treating an echo as external wipes in-
// progress typing; treating an external reset as an echo leaves stale
// buffers on screen.

// ItemColumn identifies one editable column of the line-items table.
type ItemColumn string

const (
	ColumnDescription ItemColumn = "description"
	ColumnQty         ItemColumn = "qty"
	ColumnUnitPrice   ItemColumn = "unitPrice"
	ColumnTaxRate     ItemColumn = "taxRate"
)

// RawLineItem is the editable text shadow of a line item. Qty and
// UnitPrice may hold empty strings or partial decimals that do not
// parse cleanly; they map to the numeric model via ParseRawNumber.
type RawLineItem struct {
	Description string
	Qty         string
	UnitPrice   string
	TaxRate     int
}

// epsilon for qty/unitPrice baseline comparison; description and tax
// rate compare exactly.
var baselineEpsilon = decimal.New(1, -9)

// reconciler owns both representations plus the baseline used for
// external-change detection. Not safe for concurrent use on its own;
// Form's mutex serializes access.
type reconciler struct {
	raw      []RawLineItem
	items    []invoice.LineItem
	baseline []invoice.LineItem
}

// newReconciler starts with the single default row every form mounts
// with: quantity 1, price 0, standard rate.
func newReconciler() *reconciler {
	r := &reconciler{
		raw:   []RawLineItem{{Qty: "1", UnitPrice: "0", TaxRate: 10}},
		items: []invoice.LineItem{invoice.DefaultLineItem()},
	}
	r.rebaseline()
	return r
}

// ParseRawNumber converts a raw buffer to its numeric value:
// trimmed-empty and unparseable input both become zero.
func ParseRawNumber(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// parseTaxRate accepts "10" or "10%"; unparseable input becomes 0.
// Membership in the allowed set is checked at validation time, not here.
func parseTaxRate(raw string) int {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0
	}
	return n
}

// edit applies one keystroke: raw buffer verbatim, numeric cell parsed,
// baseline re-recorded. The three belong to a single atomic step so
// totals computed right after always match the displayed line amount.
func (r *reconciler) edit(index int, column ItemColumn, raw string) {
	if index < 0 || index >= len(r.raw) {
		return
	}

	switch column {
	case ColumnDescription:
		r.raw[index].Description = raw
		r.items[index].Description = raw
	case ColumnQty:
		r.raw[index].Qty = raw
		r.items[index].Qty = ParseRawNumber(raw)
	case ColumnUnitPrice:
		r.raw[index].UnitPrice = raw
		r.items[index].UnitPrice = ParseRawNumber(raw)
	case ColumnTaxRate:
		rate := parseTaxRate(raw)
		r.raw[index].TaxRate = rate
		r.items[index].TaxRate = rate
	}

	r.rebaseline()
}

// blur normalizes the raw buffer after editing ends: a non-empty buffer
// is replaced by the canonical form of its parsed value ("1.0" becomes
// "1"), an empty buffer stays empty. The user may leave a cell blank;
// it contributes 0 to totals without being forced to display "0".
func (r *reconciler) blur(index int, column ItemColumn) {
	if index < 0 || index >= len(r.raw) {
		return
	}

	switch column {
	case ColumnQty:
		if strings.TrimSpace(r.raw[index].Qty) != "" {
			r.raw[index].Qty = ParseRawNumber(r.raw[index].Qty).String()
		}
	case ColumnUnitPrice:
		if strings.TrimSpace(r.raw[index].UnitPrice) != "" {
			r.raw[index].UnitPrice = ParseRawNumber(r.raw[index].UnitPrice).String()
		}
	}
}

// isExternal reports whether incoming differs from the last numeric
// list this reconciler produced: a length mismatch, any description or
// tax-rate difference, or a qty/unitPrice difference beyond epsilon.
func (r *reconciler) isExternal(incoming []invoice.LineItem) bool {
	if len(incoming) != len(r.baseline) {
		return true
	}
	for i, in := range incoming {
		base := r.baseline[i]
		if in.Description != base.Description || in.TaxRate != base.TaxRate {
			return true
		}
		if in.Qty.Sub(base.Qty).Abs().GreaterThan(baselineEpsilon) {
			return true
		}
		if in.UnitPrice.Sub(base.UnitPrice).Abs().GreaterThan(baselineEpsilon) {
			return true
		}
	}
	return false
}

// reconcile resynchronizes the raw buffers from an incoming numeric
// list if, and only if, the list is an external change. A cell whose
// raw buffer is empty and whose incoming numeric value is zero stays
// empty instead of being overwritten with "0".
func (r *reconciler) reconcile(incoming []invoice.LineItem) {
	if !r.isExternal(incoming) {
		return // our own update echoing back
	}

	oldRaw := r.raw
	r.items = cloneItems(incoming)
	r.raw = make([]RawLineItem, len(incoming))

	for i, it := range incoming {
		rl := RawLineItem{
			Description: it.Description,
			Qty:         it.Qty.String(),
			UnitPrice:   it.UnitPrice.String(),
			TaxRate:     it.TaxRate,
		}
		if i < len(oldRaw) {
			if strings.TrimSpace(oldRaw[i].Qty) == "" && it.Qty.IsZero() {
				rl.Qty = ""
			}
			if strings.TrimSpace(oldRaw[i].UnitPrice) == "" && it.UnitPrice.IsZero() {
				rl.UnitPrice = ""
			}
		}
		r.raw[i] = rl
	}

	r.rebaseline()
}

// addRow appends the default line with its raw mirror.
func (r *reconciler) addRow() {
	r.items = append(r.items, invoice.DefaultLineItem())
	r.raw = append(r.raw, RawLineItem{Qty: "1", UnitPrice: "0", TaxRate: 10})
	r.rebaseline()
}

// removeRow removes a row from both lists in lockstep. The last
// remaining row cannot be removed; that is a no-op, reported false.
func (r *reconciler) removeRow(index int) bool {
	if len(r.items) <= 1 || index < 0 || index >= len(r.items) {
		return false
	}
	r.items = append(r.items[:index], r.items[index+1:]...)
	r.raw = append(r.raw[:index], r.raw[index+1:]...)
	r.rebaseline()
	return true
}

// displayAmount is the line amount computed from the parsed raw buffers
// at read time, so an in-progress edit shows up immediately.
func (r *reconciler) displayAmount(index int) decimal.Decimal {
	if index < 0 || index >= len(r.raw) {
		return decimal.Zero
	}
	return ParseRawNumber(r.raw[index].Qty).Mul(ParseRawNumber(r.raw[index].UnitPrice))
}

func (r *reconciler) rebaseline() {
	r.baseline = cloneItems(r.items)
}

func (r *reconciler) itemsCopy() []invoice.LineItem {
	return cloneItems(r.items)
}

func (r *reconciler) rawCopy() []RawLineItem {
	out := make([]RawLineItem, len(r.raw))
	copy(out, r.raw)
	return out
}

func cloneItems(items []invoice.LineItem) []invoice.LineItem {
	out := make([]invoice.LineItem, len(items))
	copy(out, items)
	return out
}
