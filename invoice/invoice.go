// Package invoice defines the data model for manually entered invoices:
// line items, the fixed set of top-level fields, and totals computation.
//
// The package is purely representational. All business rules (required
// fields, formats, remote checks) live in the form package; the remote
// wire shapes live in the rules package.
package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// AllowedTaxRates lists the consumption tax rates a line item may carry,
// in percent. 8 is the reduced rate, 10 the standard rate.
var AllowedTaxRates = []int{0, 8, 10}

// LineItem is one invoice row. Qty and UnitPrice are decimals so amounts
// survive round-tripping without float drift; TaxRate is a percentage and
// must be one of AllowedTaxRates.
//
// A line may transiently hold Qty == 0 while being edited; it only counts
// as valid once Qty > 0.
type LineItem struct {
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxRate     int             `json:"taxRate"`
}

// DefaultLineItem returns the line every new row starts from:
// empty description, quantity 1, price 0, standard 10% rate.
func DefaultLineItem() LineItem {
	return LineItem{
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.Zero,
		TaxRate:   10,
	}
}

// Amount returns the tax-exclusive line amount (Qty * UnitPrice).
func (li LineItem) Amount() decimal.Decimal {
	return li.Qty.Mul(li.UnitPrice)
}

// Tax returns the tax portion for this line (Amount * TaxRate / 100),
// unrounded. Rounding happens once at the aggregate in ComputeTotals.
func (li LineItem) Tax() decimal.Decimal {
	return li.Amount().Mul(decimal.NewFromInt(int64(li.TaxRate))).Div(decimal.NewFromInt(100))
}

// Valid reports whether the line satisfies all line-item rules:
// non-empty description, positive quantity, non-negative unit price,
// and an allowed tax rate.
func (li LineItem) Valid() bool {
	if strings.TrimSpace(li.Description) == "" {
		return false
	}
	if !li.Qty.IsPositive() {
		return false
	}
	if li.UnitPrice.IsNegative() {
		return false
	}
	return slices.Contains(AllowedTaxRates, li.TaxRate)
}

// Invoice holds the values of the fixed top-level fields plus the line
// items. Field values are kept as entered (untrimmed); normalization for
// the wire happens in the submission path.
type Invoice struct {
	SellerName    string `json:"sellerName"`
	SellerRegNo   string `json:"sellerRegNo"`
	SellerAddress string `json:"sellerAddress"`
	BuyerName     string `json:"buyerName"`
	BuyerAddress  string `json:"buyerAddress"`
	InvoiceNo     string `json:"invoiceNo"`
	InvoiceDate   string `json:"invoiceDate"`
	DueDate       string `json:"dueDate,omitempty"`
	Remarks       string `json:"remarks,omitempty"`

	Items []LineItem `json:"items"`
}

// Get returns the value of a top-level field by identifier.
// Unknown fields return the empty string.
func (inv *Invoice) Get(f Field) string {
	switch f {
	case FieldSellerName:
		return inv.SellerName
	case FieldSellerRegNo:
		return inv.SellerRegNo
	case FieldSellerAddress:
		return inv.SellerAddress
	case FieldBuyerName:
		return inv.BuyerName
	case FieldBuyerAddress:
		return inv.BuyerAddress
	case FieldInvoiceNo:
		return inv.InvoiceNo
	case FieldInvoiceDate:
		return inv.InvoiceDate
	case FieldDueDate:
		return inv.DueDate
	case FieldRemarks:
		return inv.Remarks
	}
	return ""
}

// Set assigns the value of a top-level field by identifier.
// Unknown fields are ignored.
func (inv *Invoice) Set(f Field, value string) {
	switch f {
	case FieldSellerName:
		inv.SellerName = value
	case FieldSellerRegNo:
		inv.SellerRegNo = value
	case FieldSellerAddress:
		inv.SellerAddress = value
	case FieldBuyerName:
		inv.BuyerName = value
	case FieldBuyerAddress:
		inv.BuyerAddress = value
	case FieldInvoiceNo:
		inv.InvoiceNo = value
	case FieldInvoiceDate:
		inv.InvoiceDate = value
	case FieldDueDate:
		inv.DueDate = value
	case FieldRemarks:
		inv.Remarks = value
	}
}
