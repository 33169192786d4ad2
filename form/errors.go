package form

import (
	"fmt"
	"strings"

	"github.com/audos/intake/invoice"
)

// Error types for form validation and submission failures

// RequiredFieldError is returned when a required field is empty.
type RequiredFieldError struct {
	Field invoice.Field
}

// NewRequiredFieldError creates a RequiredFieldError for the field.
func NewRequiredFieldError(field invoice.Field) *RequiredFieldError {
	return &RequiredFieldError{Field: field}
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// FormatError is returned when a field value has the wrong shape
// (malformed date, registration number with the wrong digit count).
type FormatError struct {
	Field  invoice.Field
	Reason string
}

// NewFormatError creates a FormatError for the field with a reason
// phrased to follow the field name ("must be ...").
func NewFormatError(field invoice.Field, reason string) *FormatError {
	return &FormatError{Field: field, Reason: reason}
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// RemoteFieldError is returned when the rules service rejects a single
// field during a live check. It blocks only that field's checkmark and
// the owning section, never the whole form.
type RemoteFieldError struct {
	Field   invoice.Field
	Message string
}

// NewRemoteFieldError creates a RemoteFieldError carrying the service's
// message for the field.
func NewRemoteFieldError(field invoice.Field, message string) *RemoteFieldError {
	return &RemoteFieldError{Field: field, Message: message}
}

func (e *RemoteFieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LocalValidationError is returned when the final synchronous pass on
// submit finds problems. No network call is made in that case; the form
// stays editable.
type LocalValidationError struct {
	Problems []string
}

// NewLocalValidationError creates a LocalValidationError from the
// collected problems.
func NewLocalValidationError(problems []string) *LocalValidationError {
	return &LocalValidationError{Problems: problems}
}

func (e *LocalValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "form is not valid"
	}
	return fmt.Sprintf("form is not valid: %s", strings.Join(e.Problems, "; "))
}

// SubmitRejectedError is returned when the rules service rejects the
// whole invoice, or when the validation call fails on the network.
// Fatal to the attempt only: the form keeps its state for a resubmit.
type SubmitRejectedError struct {
	Message string
	Details []string
}

// NewSubmitRejectedError creates a SubmitRejectedError. Details may be
// nil when the server sent only a flat message.
func NewSubmitRejectedError(message string, details []string) *SubmitRejectedError {
	return &SubmitRejectedError{Message: message, Details: details}
}

func (e *SubmitRejectedError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, e.Details[0])
	}
	return e.Message
}

// ArtifactError records a failed artifact generation. It is never fatal:
// a failed PDF must not discard a successful validation result, so this
// error only ever surfaces as a warning on the submission result.
type ArtifactError struct {
	Err error
}

// NewArtifactError wraps an artifact generation failure.
func NewArtifactError(err error) *ArtifactError {
	return &ArtifactError{Err: err}
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact generation failed: %v", e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}
