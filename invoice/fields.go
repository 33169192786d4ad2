package invoice

// Field identifies one of the fixed top-level invoice fields.
// The values match the identifiers the entry form uses.
type Field string

const (
	FieldSellerName    Field = "sellerName"
	FieldSellerRegNo   Field = "sellerRegNo"
	FieldSellerAddress Field = "sellerAddress"
	FieldBuyerName     Field = "buyerName"
	FieldBuyerAddress  Field = "buyerAddress"
	FieldInvoiceNo     Field = "invoiceNo"
	FieldInvoiceDate   Field = "invoiceDate"
	FieldDueDate       Field = "dueDate"
	FieldRemarks       Field = "remarks"
)

// Fields returns all top-level fields in entry order.
func Fields() []Field {
	return []Field{
		FieldSellerName,
		FieldSellerRegNo,
		FieldSellerAddress,
		FieldBuyerName,
		FieldBuyerAddress,
		FieldInvoiceNo,
		FieldInvoiceDate,
		FieldDueDate,
		FieldRemarks,
	}
}

// wireNames maps form field identifiers to the vocabulary the rules
// service speaks. The mapping must stay total and bijective for the
// known field set; WireName and FieldForWire are its two directions.
var wireNames = map[Field]string{
	FieldSellerName:    "issuer_name",
	FieldSellerRegNo:   "issuer_id",
	FieldSellerAddress: "address",
	FieldBuyerName:     "buyer",
	FieldBuyerAddress:  "buyer_address",
	FieldInvoiceNo:     "invoice_number",
	FieldInvoiceDate:   "date",
	FieldDueDate:       "due_date",
	FieldRemarks:       "remarks",
}

var fieldsByWireName = func() map[string]Field {
	m := make(map[string]Field, len(wireNames))
	for f, w := range wireNames {
		m[w] = f
	}
	return m
}()

// WireName translates a form field identifier into the rules-service
// vocabulary. The bool is false for unknown fields.
func WireName(f Field) (string, bool) {
	w, ok := wireNames[f]
	return w, ok
}

// FieldForWire translates a rules-service field name back into the form
// identifier. The bool is false for unknown names.
func FieldForWire(name string) (Field, bool) {
	f, ok := fieldsByWireName[name]
	return f, ok
}

// requiredFields are the fields that must be non-empty for a form to be
// submittable. Due date and remarks are optional.
var requiredFields = map[Field]bool{
	FieldSellerName:    true,
	FieldSellerRegNo:   true,
	FieldSellerAddress: true,
	FieldBuyerName:     true,
	FieldBuyerAddress:  true,
	FieldInvoiceNo:     true,
	FieldInvoiceDate:   true,
}

// Required reports whether the field must be non-empty on submit.
func (f Field) Required() bool {
	return requiredFields[f]
}

// remoteChecked are the fields the rules service has live per-field
// checks for. Buyer address, due date and remarks have none.
var remoteChecked = map[Field]bool{
	FieldSellerName:    true,
	FieldSellerRegNo:   true,
	FieldSellerAddress: true,
	FieldBuyerName:     true,
	FieldInvoiceNo:     true,
	FieldInvoiceDate:   true,
}

// RemoteChecked reports whether blur on the field should trigger a
// remote validation call.
func (f Field) RemoteChecked() bool {
	return remoteChecked[f]
}
