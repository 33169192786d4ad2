// Package rulesd implements the invoice rules service: a small HTTP
// server exposing per-field checks, full invoice validation, and
// artifact generation, driven by a rules.json ruleset that reloads on
// change.
package rulesd

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// Rule is one entry of rules.json. Type selects the check; Pattern and
// Allowed apply to regex and enum_any_item rules respectively.
//
// Field uses the service vocabulary (issuer_id, invoice_number, ...).
// A field of the form "items[].tax_rate" applies the rule to every
// element of the items list.
type Rule struct {
	Field   string   `json:"field"`
	Type    string   `json:"type"`
	Pattern string   `json:"pattern,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}

type ruleset struct {
	Rules []Rule `json:"rules"`
}

// Engine evaluates a loaded ruleset against field values and whole
// invoices. Immutable once built; the server swaps the whole engine on
// reload.
type Engine struct {
	rules    []Rule
	patterns map[string]*regexp.Regexp
}

// NewEngine parses a rules.json document and compiles its patterns.
func NewEngine(data []byte) (*Engine, error) {
	var rs ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}
	if rs.Rules == nil {
		return nil, fmt.Errorf("ruleset must contain \"rules\": [ ... ]")
	}

	e := &Engine{rules: rs.Rules, patterns: make(map[string]*regexp.Regexp)}
	for _, r := range rs.Rules {
		if r.Type == "regex" && r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern for %s: %w", r.Field, err)
			}
			e.patterns[r.Pattern] = re
		}
	}
	return e, nil
}

// LoadEngine reads and parses a ruleset file.
func LoadEngine(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewEngine(data)
}

// Rules returns the loaded rules, for introspection and tests.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// CheckField runs the live single-field check: every rule matching the
// field name (exactly, or as the tail of an items[] rule) applies, and
// the first failure decides. A field no rule mentions passes.
func (e *Engine) CheckField(name string, value any) bool {
	for _, r := range e.rules {
		if r.Field != name && !(strings.Contains(r.Field, "[]") && strings.HasSuffix(r.Field, "."+name)) {
			continue
		}
		if !e.apply(r, value) {
			return false
		}
	}
	return true
}

// apply runs one rule against one value. Unknown rule types pass.
func (e *Engine) apply(r Rule, value any) bool {
	switch r.Type {
	case "required":
		return !isEmpty(value)
	case "regex":
		if r.Pattern == "" {
			return true
		}
		return e.patterns[r.Pattern].MatchString(stringify(value))
	case "date_iso":
		return isoDate(stringify(value))
	case "enum_any_item":
		s := stringify(value)
		for _, a := range r.Allowed {
			if s == a {
				return true
			}
		}
		return false
	}
	return true
}

// failure is one rule violation found during full validation, with its
// localized messages.
type failure struct {
	Field string
	JA    string
	EN    string
}

// Message returns the failure rendered for one language.
func (f failure) Message(lang string) string {
	if lang == "ja" {
		return fmt.Sprintf("%s: %s", f.Field, f.JA)
	}
	return fmt.Sprintf("%s: %s", f.Field, f.EN)
}

// Evaluate runs the full ruleset over a normalized invoice (service
// vocabulary keys) and returns every violation.
func (e *Engine) Evaluate(normalized map[string]any) []failure {
	var fails []failure

	for _, r := range e.rules {
		switch r.Type {
		case "required":
			if isEmpty(normalized[r.Field]) {
				fails = append(fails, failure{
					Field: r.Field,
					JA:    fmt.Sprintf("%s は必須項目です。", r.Field),
					EN:    fmt.Sprintf("%s is required.", r.Field),
				})
			}

		case "regex":
			val := normalized[r.Field]
			if r.Pattern == "" || isEmpty(val) {
				continue
			}
			if !e.patterns[r.Pattern].MatchString(stringify(val)) {
				fails = append(fails, failure{
					Field: r.Field,
					JA:    fmt.Sprintf("%s の形式が正しくありません。", r.Field),
					EN:    fmt.Sprintf("Invalid format for %s.", r.Field),
				})
			}

		case "date_iso":
			val := normalized[r.Field]
			if isEmpty(val) {
				continue
			}
			if !isoDate(stringify(val)) {
				fails = append(fails, failure{
					Field: r.Field,
					JA:    fmt.Sprintf("%s は YYYY-MM-DD 形式である必要があります。", r.Field),
					EN:    fmt.Sprintf("%s must be YYYY-MM-DD.", r.Field),
				})
			}

		case "enum_any_item":
			listPath, tail, ok := strings.Cut(r.Field, "[]")
			if !ok {
				continue
			}
			subfield := strings.TrimPrefix(tail, ".")
			items, _ := normalized[listPath].([]map[string]any)
			for idx, item := range items {
				s := stringify(item[subfield])
				allowed := false
				for _, a := range r.Allowed {
					if s == a {
						allowed = true
						break
					}
				}
				if !allowed {
					fname := fmt.Sprintf("%s[%d].%s", listPath, idx, subfield)
					fails = append(fails, failure{
						Field: fname,
						JA:    fmt.Sprintf("%s の税率が許可された値ではありません。", fname),
						EN:    fmt.Sprintf("%s tax rate is not allowed.", fname),
					})
				}
			}
		}
	}

	return fails
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// isoDate accepts plain dates and full timestamps, matching the
// tolerance of the original ruleset.
func isoDate(s string) bool {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
