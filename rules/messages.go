package rules

import (
	"encoding/json"
	"strings"
)

// ExtractMessage flattens a FieldCheckResult into a single human-readable
// message in the requested language.
//
// Services answer in several shapes and all of them occur in the wild:
//
//	{"message": "..."}
//	{"messages": "..."}
//	{"messages": ["...", "..."]}
//	{"messages": {"en": "...", "ja": "..."}}
//	{"messages": {"en": ["...", "..."]}}
//
// Precedence: the flat message wins, then the messages value for lang,
// then English, then any language present. Returns "" when nothing
// usable was sent; callers substitute their own generic message.
func ExtractMessage(res *FieldCheckResult, lang string) string {
	if res == nil {
		return ""
	}
	if res.Message != "" {
		return res.Message
	}
	if len(res.Messages) == 0 {
		return ""
	}

	if msg := flatten(res.Messages); msg != "" {
		return msg
	}

	var byLang map[string]json.RawMessage
	if err := json.Unmarshal(res.Messages, &byLang); err != nil {
		return ""
	}

	for _, key := range []string{lang, "en"} {
		if raw, ok := byLang[key]; ok {
			if msg := flatten(raw); msg != "" {
				return msg
			}
		}
	}

	// Any language beats no message at all.
	for _, raw := range byLang {
		if msg := flatten(raw); msg != "" {
			return msg
		}
	}

	return ""
}

// flatten decodes a raw value that is either a string or a list of
// strings, returning the first non-empty entry.
func flatten(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, entry := range list {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
