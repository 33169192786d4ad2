package form

import (
	"context"
	stdErrors "errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/audos/intake/invoice"
	"github.com/audos/intake/rules"
)

type fakeValidator struct {
	mu      sync.Mutex
	payload *rules.InvoicePayload
	report  *rules.ValidationReport
	err     error
}

func (v *fakeValidator) Validate(ctx context.Context, payload *rules.InvoicePayload) (*rules.ValidationReport, error) {
	v.mu.Lock()
	v.payload = payload
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.report, nil
}

type fakeGenerator struct {
	data []byte
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, payload *rules.InvoicePayload) ([]byte, error) {
	return g.data, g.err
}

func completeInvoice() invoice.Invoice {
	return invoice.Invoice{
		SellerName:    "Acme KK",
		SellerRegNo:   "T1234567890123",
		SellerAddress: "1-2-3 Chiyoda, Tokyo",
		BuyerName:     "Globex GK",
		BuyerAddress:  "4-5-6 Umeda, Osaka",
		InvoiceNo:     "INV-001",
		InvoiceDate:   "2026-04-01",
		Items: []invoice.LineItem{
			{Description: "Consulting", Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(500), TaxRate: 10},
			{Description: "Groceries", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(300), TaxRate: 8},
		},
	}
}

func compliantReport() *rules.ValidationReport {
	return &rules.ValidationReport{
		Compliant: true,
		Status:    "pass",
		Language:  "en",
	}
}

func TestSubmitLocalFailureSkipsNetwork(t *testing.T) {
	validator := &fakeValidator{report: compliantReport()}
	f := New(WithValidator(validator))

	res, err := f.Submit(context.Background())
	assert.Zero(t, res)

	var local *LocalValidationError
	assert.True(t, stdErrors.As(err, &local))
	assert.True(t, len(local.Problems) > 0)

	// No payload was built or sent.
	assert.Zero(t, validator.payload)
	assert.Equal(t, StateFailed, f.State())

	// Every field is touched so all errors show at once.
	for _, field := range invoice.Fields() {
		if field.Required() {
			st := f.Field(field)
			assert.True(t, st.Touched)
			assert.NotEqual(t, "", st.Error)
		}
	}
}

func TestSubmitSuccess(t *testing.T) {
	dir := t.TempDir()
	validator := &fakeValidator{report: compliantReport()}
	generator := &fakeGenerator{data: []byte("%PDF-stub")}

	f := New(
		WithValidator(validator),
		WithGenerator(generator),
		WithArtifactDir(dir),
	)
	f.Apply(completeInvoice())

	res, err := f.Submit(context.Background())
	assert.NoError(t, err)
	assert.True(t, res.Compliant)
	assert.Equal(t, 0, res.IssuesCount)
	assert.Equal(t, StateDone, f.State())

	// Payload normalization: bare digits for the registration number,
	// percent-string tax rates, aggregate-rounded totals.
	assert.Equal(t, "1234567890123", validator.payload.SellerRegNo)
	assert.Equal(t, "10%", validator.payload.Items[0].TaxRate)
	assert.Equal(t, "8%", validator.payload.Items[1].TaxRate)
	assert.Equal(t, 1300.0, validator.payload.Totals.Subtotal)
	assert.Equal(t, 124.0, validator.payload.Totals.TaxTotal)
	assert.Equal(t, 1424.0, validator.payload.Totals.GrandTotal)

	// Artifact written next to the submission ID.
	assert.NotEqual(t, "", res.ArtifactPath)
	data, err := os.ReadFile(res.ArtifactPath)
	assert.NoError(t, err)
	assert.Equal(t, "%PDF-stub", string(data))
}

func TestSubmitRejection(t *testing.T) {
	validator := &fakeValidator{
		err: &rules.RemoteError{
			StatusCode: 400,
			Message:    "Validation failed",
			Details:    []string{"sellerRegNo must be a 13-digit numeric value"},
		},
	}
	f := New(WithValidator(validator))
	f.Apply(completeInvoice())

	res, err := f.Submit(context.Background())
	assert.Zero(t, res)

	var rejected *SubmitRejectedError
	assert.True(t, stdErrors.As(err, &rejected))
	assert.Equal(t, "Validation failed", rejected.Message)
	assert.Equal(t, []string{"sellerRegNo must be a 13-digit numeric value"}, rejected.Details)

	// The form stays editable for a resubmit, but the failure gates
	// overall validity.
	assert.Equal(t, StateFailed, f.State())
	assert.False(t, f.Validity().Form)
}

func TestSubmitTransportFailure(t *testing.T) {
	validator := &fakeValidator{err: fmt.Errorf("connection refused")}
	f := New(WithValidator(validator))
	f.Apply(completeInvoice())

	_, err := f.Submit(context.Background())

	var rejected *SubmitRejectedError
	assert.True(t, stdErrors.As(err, &rejected))
	assert.Equal(t, StateFailed, f.State())
}

func TestSubmitArtifactFailureIsNonFatal(t *testing.T) {
	validator := &fakeValidator{report: compliantReport()}
	generator := &fakeGenerator{err: fmt.Errorf("font missing")}

	f := New(WithValidator(validator), WithGenerator(generator))
	f.Apply(completeInvoice())

	res, err := f.Submit(context.Background())
	assert.NoError(t, err)
	assert.True(t, res.Compliant)
	assert.Equal(t, "", res.ArtifactPath)
	assert.Equal(t, StateDone, f.State())

	assert.Equal(t, 1, len(res.Warnings))
	assert.Equal(t, "artifact generation failed: font missing", res.Warnings[0])
}

func TestSubmitIssuesBecomeWarnings(t *testing.T) {
	validator := &fakeValidator{
		report: &rules.ValidationReport{
			Compliant:   false,
			IssuesCount: 1,
			Issues:      []string{"issuer_id: Invalid format for issuer_id."},
			Status:      "fail",
		},
	}
	f := New(WithValidator(validator))
	f.Apply(completeInvoice())

	res, err := f.Submit(context.Background())
	assert.NoError(t, err)
	assert.False(t, res.Compliant)
	assert.Equal(t, []string{"issuer_id: Invalid format for issuer_id."}, res.Warnings)
}

func TestSubmitWithoutServiceFails(t *testing.T) {
	f := New()
	f.Apply(completeInvoice())

	_, err := f.Submit(context.Background())

	var rejected *SubmitRejectedError
	assert.True(t, stdErrors.As(err, &rejected))
	assert.Equal(t, "no rules service configured", rejected.Message)
}

func TestSubmitIncompleteLineItem(t *testing.T) {
	validator := &fakeValidator{report: compliantReport()}
	f := New(WithValidator(validator))

	inv := completeInvoice()
	inv.Items[0].Description = ""
	f.Apply(inv)

	_, err := f.Submit(context.Background())

	var local *LocalValidationError
	assert.True(t, stdErrors.As(err, &local))
	assert.Equal(t, []string{"line 1 is incomplete"}, local.Problems)
}
