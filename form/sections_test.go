package form

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/audos/intake/invoice"
)

func validFields() map[invoice.Field]FieldState {
	fields := map[invoice.Field]FieldState{
		invoice.FieldSellerName:    {Value: "Acme KK", Status: StatusValid},
		invoice.FieldSellerRegNo:   {Value: "T1234567890123", Status: StatusValid},
		invoice.FieldSellerAddress: {Value: "Tokyo", Status: StatusValid},
		invoice.FieldBuyerName:     {Value: "Globex GK", Status: StatusValid},
		invoice.FieldBuyerAddress:  {Value: "Osaka"},
		invoice.FieldInvoiceNo:     {Value: "INV-001", Status: StatusValid},
		invoice.FieldInvoiceDate:   {Value: "2026-04-01", Status: StatusValid},
		invoice.FieldDueDate:       {},
		invoice.FieldRemarks:       {},
	}
	return fields
}

func validItems() []invoice.LineItem {
	return []invoice.LineItem{
		{Description: "Consulting", Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(500), TaxRate: 10},
	}
}

func TestAggregateValidityAllValid(t *testing.T) {
	v := AggregateValidity(validFields(), validItems(), nil)

	assert.True(t, v.Seller)
	assert.True(t, v.Buyer)
	assert.True(t, v.Details)
	assert.True(t, v.Items)
	assert.True(t, v.Totals)
	assert.True(t, v.Form)
}

func TestAggregateValidity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string)
		check  func(*testing.T, SectionValidity)
	}{
		{
			name: "empty seller name blocks seller section only",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				fields[invoice.FieldSellerName] = FieldState{Value: ""}
				return validItems(), nil
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.False(t, v.Seller)
				assert.True(t, v.Buyer)
				assert.True(t, v.Details)
				assert.False(t, v.Form)
			},
		},
		{
			name: "remote rejection blocks owning section",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				fields[invoice.FieldSellerRegNo] = FieldState{Value: "T1234567890123", Status: StatusInvalid, Error: "rejected"}
				return validItems(), nil
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.False(t, v.Seller)
				assert.True(t, v.Buyer)
				assert.False(t, v.Form)
			},
		},
		{
			name: "pending check does not block",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				fields[invoice.FieldSellerName] = FieldState{Value: "Acme KK", Status: StatusPending}
				return validItems(), nil
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.True(t, v.Seller)
				assert.True(t, v.Form)
			},
		},
		{
			name: "optional due date must parse when present",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				fields[invoice.FieldDueDate] = FieldState{Value: "soon"}
				return validItems(), nil
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.False(t, v.Details)
				assert.False(t, v.Form)
			},
		},
		{
			name: "incomplete line item blocks items section",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				items := validItems()
				items[0].Description = ""
				return items, nil
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.False(t, v.Items)
				assert.False(t, v.Form)
			},
		},
		{
			name: "no items blocks items and totals",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				return nil, nil
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.False(t, v.Items)
				assert.False(t, v.Totals)
				assert.False(t, v.Form)
			},
		},
		{
			name: "totals error blocks totals section",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				return validItems(), map[string]string{"totals": "mismatch"}
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.False(t, v.Totals)
				assert.False(t, v.Form)
			},
		},
		{
			name: "non-field error blocks form only",
			mutate: func(fields map[invoice.Field]FieldState) ([]invoice.LineItem, map[string]string) {
				return validItems(), map[string]string{"submit": "rejected"}
			},
			check: func(t *testing.T, v SectionValidity) {
				assert.True(t, v.Seller)
				assert.True(t, v.Items)
				assert.True(t, v.Totals)
				assert.False(t, v.Form)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			items, extra := tt.mutate(fields)
			tt.check(t, AggregateValidity(fields, items, extra))
		})
	}
}
