package rulesd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/audos/intake/rules"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := New(0, "")
	assert.NoError(t, s.reloadRules())

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	assert.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func compliantPayload() *rules.InvoicePayload {
	return &rules.InvoicePayload{
		SellerName:    "Acme KK",
		SellerRegNo:   "1234567890123",
		SellerAddress: "1-2-3 Chiyoda, Tokyo",
		BuyerName:     "Globex GK",
		BuyerAddress:  "4-5-6 Umeda, Osaka",
		InvoiceNo:     "INV-001",
		InvoiceDate:   "2026-04-01",
		Items: []rules.ItemPayload{
			{Description: "Consulting", Qty: 2, UnitPrice: 500, TaxRate: "10%"},
			{Description: "Groceries", Qty: 1, UnitPrice: 300, TaxRate: "8%"},
		},
		Totals:   rules.TotalsPayload{Subtotal: 1300, TaxTotal: 124, GrandTotal: 1424},
		Language: "en",
	}
}

func TestHandleValidateField(t *testing.T) {
	server := newTestServer(t)

	t.Run("pass", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/validate_field", rules.FieldCheckRequest{
			Field: "issuer_id",
			Value: "T1234567890123",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result rules.FieldCheckResult
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.True(t, result.Pass())
	})

	t.Run("fail", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/validate_field", rules.FieldCheckRequest{
			Field: "issuer_id",
			Value: "1234567890123",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result rules.FieldCheckResult
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.False(t, result.Pass())
	})

	t.Run("missing field name", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/validate_field", map[string]any{"value": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body rules.ErrorBody
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "field is required", body.Error)
	})
}

func TestHandleValidate(t *testing.T) {
	server := newTestServer(t)

	t.Run("compliant invoice", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/manual-invoice/validate", compliantPayload())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var report rules.ValidationReport
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.True(t, report.Compliant)
		assert.Equal(t, 0, report.IssuesCount)
		assert.Equal(t, "pass", report.Status)

		// Normalization adds the T prefix and the service vocabulary.
		assert.Equal(t, "T1234567890123", report.Normalized["issuer_id"])
		assert.Equal(t, "Acme KK", report.Normalized["issuer_name"])
	})

	t.Run("structural errors return 400 with details", func(t *testing.T) {
		payload := compliantPayload()
		payload.SellerName = ""
		payload.SellerRegNo = "123"

		resp := postJSON(t, server.URL+"/manual-invoice/validate", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body rules.ErrorBody
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Validation failed", body.Error)
		assert.Equal(t, []string{
			"sellerName is required",
			"sellerRegNo must be a 13-digit numeric value",
		}, body.Details)
	})

	t.Run("totals mismatch is rejected", func(t *testing.T) {
		payload := compliantPayload()
		payload.Totals.GrandTotal = 9999

		resp := postJSON(t, server.URL+"/manual-invoice/validate", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body rules.ErrorBody
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 1, len(body.Details))
		assert.True(t, strings.HasPrefix(body.Details[0], "Grand total mismatch"))
	})

	t.Run("totals within tolerance pass", func(t *testing.T) {
		payload := compliantPayload()
		payload.Totals.TaxTotal = 124.005

		resp := postJSON(t, server.URL+"/manual-invoice/validate", payload)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rule failures report issues in requested language", func(t *testing.T) {
		payload := compliantPayload()
		payload.Items[0].TaxRate = "5%"
		payload.Language = "ja"

		resp := postJSON(t, server.URL+"/manual-invoice/validate", payload)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var report rules.ValidationReport
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.False(t, report.Compliant)
		assert.Equal(t, 1, report.IssuesCount)
		assert.Equal(t, "fail", report.Status)
		assert.Equal(t, "ja", report.Language)
		assert.True(t, strings.Contains(report.Issues[0], "税率"))
	})
}

func TestHandleGenerate(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/manual-invoice/generate", compliantPayload())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(resp.Header.Get("Content-Disposition"), "invoice_INV-001.pdf"))

	data := make([]byte, 5)
	_, err := resp.Body.Read(data)
	assert.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data))
}

func TestGenerateRejectsInvalidPayload(t *testing.T) {
	server := newTestServer(t)

	payload := compliantPayload()
	payload.Items = nil
	payload.Totals = rules.TotalsPayload{}

	resp := postJSON(t, server.URL+"/manual-invoice/generate", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRulesFileReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")

	assert.NoError(t, os.WriteFile(path, defaultRules, 0o644))

	s := New(0, path)
	assert.NoError(t, s.reloadRules())
	assert.False(t, s.currentEngine().CheckField("issuer_id", "1234567890123"))

	// Loosen the ruleset and reload: the new engine must take over.
	loosened := []byte(`{"rules": [{"field": "issuer_id", "type": "required"}]}`)
	assert.NoError(t, os.WriteFile(path, loosened, 0o644))
	assert.NoError(t, s.reloadRules())
	assert.True(t, s.currentEngine().CheckField("issuer_id", "1234567890123"))

	// A broken edit keeps the previous engine serving.
	assert.NoError(t, os.WriteFile(path, []byte("broken"), 0o644))
	assert.Error(t, s.reloadRules())
	assert.True(t, s.currentEngine().CheckField("issuer_id", "1234567890123"))
}
