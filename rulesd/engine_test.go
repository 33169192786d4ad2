package rulesd

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(defaultRules)
	assert.NoError(t, err)
	return engine
}

func TestNewEngineRejectsBadRulesets(t *testing.T) {
	_, err := NewEngine([]byte(`not json`))
	assert.Error(t, err)

	_, err = NewEngine([]byte(`{"something": "else"}`))
	assert.Error(t, err)

	_, err = NewEngine([]byte(`{"rules": [{"field": "x", "type": "regex", "pattern": "("}]}`))
	assert.Error(t, err)
}

func TestCheckFieldLive(t *testing.T) {
	engine := defaultEngine(t)

	tests := []struct {
		name  string
		field string
		value any
		pass  bool
	}{
		{"registration number well formed", "issuer_id", "T1234567890123", true},
		{"registration number missing prefix", "issuer_id", "1234567890123", false},
		{"registration number empty", "issuer_id", "", false},
		{"issuer name present", "issuer_name", "Acme KK", true},
		{"issuer name empty", "issuer_name", "", false},
		{"date well formed", "date", "2026-04-01", true},
		{"date malformed", "date", "04/01/2026", false},
		{"due date malformed", "due_date", "soon", false},
		{"tax rate allowed", "tax_rate", "8%", true},
		{"tax rate disallowed", "tax_rate", "5%", false},
		{"unknown field passes", "buyer_address", "Osaka", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pass, engine.CheckField(tt.field, tt.value))
		})
	}
}

func TestEvaluate(t *testing.T) {
	engine := defaultEngine(t)

	base := func() map[string]any {
		return map[string]any{
			"invoice_number": "INV-001",
			"issuer_name":    "Acme KK",
			"issuer_id":      "T1234567890123",
			"buyer":          "Globex GK",
			"address":        "Tokyo",
			"date":           "2026-04-01",
			"items": []map[string]any{
				{"description": "Consulting", "amount_excl_tax": 1000.0, "tax_rate": "10%"},
			},
		}
	}

	t.Run("compliant invoice has no failures", func(t *testing.T) {
		assert.Equal(t, 0, len(engine.Evaluate(base())))
	})

	t.Run("missing required field", func(t *testing.T) {
		normalized := base()
		normalized["issuer_name"] = ""

		fails := engine.Evaluate(normalized)
		assert.Equal(t, 1, len(fails))
		assert.Equal(t, "issuer_name", fails[0].Field)
		assert.Equal(t, "issuer_name: issuer_name is required.", fails[0].Message("en"))
		assert.Equal(t, "issuer_name: issuer_name は必須項目です。", fails[0].Message("ja"))
	})

	t.Run("malformed registration number", func(t *testing.T) {
		normalized := base()
		normalized["issuer_id"] = "T123"

		fails := engine.Evaluate(normalized)
		assert.Equal(t, 1, len(fails))
		assert.Equal(t, "issuer_id: Invalid format for issuer_id.", fails[0].Message("en"))
	})

	t.Run("empty optional due date is skipped", func(t *testing.T) {
		normalized := base()
		// due_date absent entirely: the date_iso rule only applies to
		// present values.
		assert.Equal(t, 0, len(engine.Evaluate(normalized)))
	})

	t.Run("bad due date", func(t *testing.T) {
		normalized := base()
		normalized["due_date"] = "soon"

		fails := engine.Evaluate(normalized)
		assert.Equal(t, 1, len(fails))
		assert.Equal(t, "due_date: due_date must be YYYY-MM-DD.", fails[0].Message("en"))
	})

	t.Run("disallowed tax rate names the item", func(t *testing.T) {
		normalized := base()
		normalized["items"] = []map[string]any{
			{"description": "A", "amount_excl_tax": 100.0, "tax_rate": "10%"},
			{"description": "B", "amount_excl_tax": 100.0, "tax_rate": "5%"},
		}

		fails := engine.Evaluate(normalized)
		assert.Equal(t, 1, len(fails))
		assert.Equal(t, "items[1].tax_rate", fails[0].Field)
		assert.Equal(t, "items[1].tax_rate: items[1].tax_rate tax rate is not allowed.", fails[0].Message("en"))
	})

	t.Run("multiple failures accumulate", func(t *testing.T) {
		normalized := base()
		normalized["issuer_name"] = ""
		normalized["issuer_id"] = "nope"
		normalized["date"] = "yesterday"

		fails := engine.Evaluate(normalized)
		assert.Equal(t, 3, len(fails))
	})
}
