// Package rules speaks the wire protocol of the invoice rules service.
//
// It defines the request/response shapes for the three endpoints the
// intake form uses (per-field check, full invoice validation, artifact
// generation) and an HTTP client for them. The service's internal rule
// logic is a black box to this package.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/audos/intake/invoice"
)

// FieldCheckRequest is the body of POST /validate_field. Field uses the
// service vocabulary (issuer_id, invoice_number, ...), not the form's.
type FieldCheckRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// FieldCheckResult is the service's answer to a per-field check.
// Status is "pass" or "fail". Messages, when present, can be a plain
// string, a list, or a language map; use ExtractMessage to flatten it.
type FieldCheckResult struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Messages json.RawMessage `json:"messages,omitempty"`
}

// Pass reports whether the check succeeded.
func (r *FieldCheckResult) Pass() bool {
	return r.Status == "pass"
}

// ItemPayload is one normalized line item on the wire. TaxRate is the
// "<n>%" string form the service expects.
type ItemPayload struct {
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
	TaxRate     string  `json:"taxRate"`
}

// TotalsPayload carries the client-computed totals so the service can
// cross-check them against its own arithmetic.
type TotalsPayload struct {
	Subtotal   float64 `json:"subtotal"`
	TaxTotal   float64 `json:"taxTotal"`
	GrandTotal float64 `json:"grandTotal"`
}

// InvoicePayload is the normalized invoice sent to both the validation
// and the artifact-generation endpoints.
type InvoicePayload struct {
	SellerName    string        `json:"sellerName"`
	SellerRegNo   string        `json:"sellerRegNo"`
	SellerAddress string        `json:"sellerAddress"`
	BuyerName     string        `json:"buyerName"`
	BuyerAddress  string        `json:"buyerAddress"`
	InvoiceNo     string        `json:"invoiceNo"`
	InvoiceDate   string        `json:"invoiceDate"`
	DueDate       string        `json:"dueDate,omitempty"`
	Remarks       string        `json:"remarks,omitempty"`
	Items         []ItemPayload `json:"items"`
	Totals        TotalsPayload `json:"totals"`
	Language      string        `json:"language"`
}

// ValidationReport is the service's verdict on a full invoice.
type ValidationReport struct {
	Compliant   bool           `json:"compliant"`
	IssuesCount int            `json:"issues_count"`
	Issues      []string       `json:"issues"`
	Normalized  map[string]any `json:"normalized"`
	Status      string         `json:"status"`
	Language    string         `json:"language,omitempty"`
}

// ErrorBody is the service's error envelope for non-2xx responses.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// RemoteError is returned when the service rejects a request with a
// non-2xx status. Details, when present, carry per-field messages; the
// first detail is usually the most useful one to surface.
type RemoteError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *RemoteError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, e.Details[0])
	}
	return e.Message
}

// FirstDetail returns the first detail entry, or the message when the
// server sent no details.
func (e *RemoteError) FirstDetail() string {
	if len(e.Details) > 0 {
		return e.Details[0]
	}
	return e.Message
}

// BuildPayload normalizes an invoice for the wire: strings trimmed, tax
// rates formatted back to "<n>%", and totals computed from the items.
func BuildPayload(inv invoice.Invoice, lang string) *InvoicePayload {
	items := make([]ItemPayload, len(inv.Items))
	for i, li := range inv.Items {
		items[i] = ItemPayload{
			Description: trim(li.Description),
			Qty:         li.Qty.InexactFloat64(),
			UnitPrice:   li.UnitPrice.InexactFloat64(),
			TaxRate:     fmt.Sprintf("%d%%", li.TaxRate),
		}
	}

	totals := invoice.ComputeTotals(inv.Items)

	return &InvoicePayload{
		SellerName:    trim(inv.SellerName),
		SellerRegNo:   trim(inv.SellerRegNo),
		SellerAddress: trim(inv.SellerAddress),
		BuyerName:     trim(inv.BuyerName),
		BuyerAddress:  trim(inv.BuyerAddress),
		InvoiceNo:     trim(inv.InvoiceNo),
		InvoiceDate:   trim(inv.InvoiceDate),
		DueDate:       trim(inv.DueDate),
		Remarks:       trim(inv.Remarks),
		Items:         items,
		Totals: TotalsPayload{
			Subtotal:   toFloat(totals.Subtotal),
			TaxTotal:   toFloat(totals.TaxTotal),
			GrandTotal: toFloat(totals.GrandTotal),
		},
		Language: lang,
	}
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
