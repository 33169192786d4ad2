package form

import (
	"strings"
	"time"

	"github.com/audos/intake/invoice"
)

// dateLayout is the only accepted date shape, matching the rules
// service's date_iso rule.
const dateLayout = "2006-01-02"

// registrationDigits is the length of a Japanese corporate registration
// number (the digits after the T prefix).
const registrationDigits = 13

// CheckLocal runs the synchronous validation rules for one field:
// required-ness, date format, and the registration-number digit count.
//
// These checks run on blur (gating the remote check) and again, as the
// final authoritative pass, on submit. Empty optional fields pass.
// Returns nil when the value is locally acceptable.
func CheckLocal(field invoice.Field, value string) error {
	trimmed := strings.TrimSpace(value)

	if trimmed == "" {
		if field.Required() {
			return NewRequiredFieldError(field)
		}
		return nil
	}

	switch field {
	case invoice.FieldInvoiceDate, invoice.FieldDueDate:
		if !validDate(trimmed) {
			return NewFormatError(field, "must be a YYYY-MM-DD date")
		}
	case invoice.FieldSellerRegNo:
		if len(digitsOf(trimmed)) != registrationDigits {
			return NewFormatError(field, "must be a 13-digit registration number")
		}
	}

	return nil
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// digitsOf strips everything but ASCII digits, so "T1234..." and
// "1234-..." normalize to the same registration number.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// wireValue maps a locally valid field value to what the rules service
// expects for a live check. The registration number gains the T prefix
// the service vocabulary uses; everything else is sent trimmed.
func wireValue(field invoice.Field, value string) string {
	trimmed := strings.TrimSpace(value)
	if field == invoice.FieldSellerRegNo {
		return "T" + digitsOf(trimmed)
	}
	return trimmed
}
