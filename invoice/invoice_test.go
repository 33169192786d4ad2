package invoice

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func TestLineItemValid(t *testing.T) {
	tests := []struct {
		name  string
		item  LineItem
		valid bool
	}{
		{
			name:  "complete line",
			item:  LineItem{Description: "Consulting", Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(500), TaxRate: 10},
			valid: true,
		},
		{
			name:  "zero price is allowed",
			item:  LineItem{Description: "Sample", Qty: decimal.NewFromInt(1), UnitPrice: decimal.Zero, TaxRate: 0},
			valid: true,
		},
		{
			name:  "reduced rate",
			item:  LineItem{Description: "Groceries", Qty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(120), TaxRate: 8},
			valid: true,
		},
		{
			name:  "blank description",
			item:  LineItem{Description: "   ", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), TaxRate: 10},
			valid: false,
		},
		{
			name:  "zero quantity",
			item:  LineItem{Description: "Consulting", Qty: decimal.Zero, UnitPrice: decimal.NewFromInt(100), TaxRate: 10},
			valid: false,
		},
		{
			name:  "negative price",
			item:  LineItem{Description: "Refund", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(-100), TaxRate: 10},
			valid: false,
		},
		{
			name:  "disallowed tax rate",
			item:  LineItem{Description: "Consulting", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), TaxRate: 5},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.item.Valid())
		})
	}
}

func TestLineItemAmounts(t *testing.T) {
	li := LineItem{
		Description: "Consulting",
		Qty:         decimal.NewFromFloat(2.5),
		UnitPrice:   decimal.NewFromInt(400),
		TaxRate:     10,
	}

	assert.True(t, li.Amount().Equal(decimal.NewFromInt(1000)))
	assert.True(t, li.Tax().Equal(decimal.NewFromInt(100)))
}

func TestDefaultLineItem(t *testing.T) {
	li := DefaultLineItem()

	assert.Equal(t, "", li.Description)
	assert.True(t, li.Qty.Equal(decimal.NewFromInt(1)))
	assert.True(t, li.UnitPrice.IsZero())
	assert.Equal(t, 10, li.TaxRate)

	// Default rows must not count as valid until described.
	assert.False(t, li.Valid())
}

func TestInvoiceGetSet(t *testing.T) {
	var inv Invoice

	for _, f := range Fields() {
		inv.Set(f, "value-"+string(f))
	}
	for _, f := range Fields() {
		assert.Equal(t, "value-"+string(f), inv.Get(f))
	}

	// Unknown fields are ignored on both sides.
	inv.Set(Field("bogus"), "x")
	assert.Equal(t, "", inv.Get(Field("bogus")))
}

func TestWireNameRoundTrip(t *testing.T) {
	for _, f := range Fields() {
		wire, ok := WireName(f)
		assert.True(t, ok)

		back, ok := FieldForWire(wire)
		assert.True(t, ok)
		assert.Equal(t, f, back)
	}

	_, ok := WireName(Field("bogus"))
	assert.False(t, ok)
	_, ok = FieldForWire("bogus")
	assert.False(t, ok)
}

func TestFieldClassification(t *testing.T) {
	assert.True(t, FieldSellerRegNo.Required())
	assert.True(t, FieldInvoiceDate.Required())
	assert.False(t, FieldDueDate.Required())
	assert.False(t, FieldRemarks.Required())

	assert.True(t, FieldSellerName.RemoteChecked())
	assert.True(t, FieldInvoiceNo.RemoteChecked())
	assert.False(t, FieldBuyerAddress.RemoteChecked())
	assert.False(t, FieldRemarks.RemoteChecked())
}
