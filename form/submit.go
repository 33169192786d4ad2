package form

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/audos/intake/invoice"
	"github.com/audos/intake/rules"
)

// SubmitState tracks where a submission attempt is in its lifecycle.
type SubmitState int

const (
	StateIdle SubmitState = iota
	StateValidatingLocally
	StateSubmitting
	StateGeneratingArtifact
	StateDone
	StateFailed
)

func (s SubmitState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidatingLocally:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateGeneratingArtifact:
		return "generating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("SubmitState(%d)", int(s))
	}
}

// SubmissionResult is the outcome of a successful submission: the
// service's verdict, the record it normalized, and any non-fatal
// warnings collected along the way.
type SubmissionResult struct {
	ID          uuid.UUID
	Compliant   bool
	IssuesCount int
	Issues      []string
	Normalized  map[string]any
	Record      *rules.InvoicePayload
	Form        invoice.Invoice

	// Warnings are non-fatal problems: compliance issues the service
	// reported, or a failed artifact generation.
	Warnings []string

	// ArtifactPath is where the generated document landed, or empty if
	// generation failed or no generator is configured.
	ArtifactPath string
}

// Submit runs the two-phase submission flow.
//
// Phase one re-runs the full set of local rules as the authoritative
// pass: every field is touched, errors rebuilt, line items checked. Any
// problem stops the attempt before a single byte goes on the wire and
// returns a *LocalValidationError.
//
// Phase two sends the normalized payload to the rules service. A
// rejection or transport failure returns a *SubmitRejectedError and
// leaves the form editable for a resubmit. On acceptance the artifact
// is generated best effort; its failure downgrades to a warning on the
// result rather than failing the submission.
func (f *Form) Submit(ctx context.Context) (*SubmissionResult, error) {
	f.mu.Lock()
	f.state = StateValidatingLocally
	delete(f.extra, "submit")

	var problems []string
	for _, field := range invoice.Fields() {
		st := f.fields[field]
		st.Touched = true
		if err := CheckLocal(field, st.Value); err != nil {
			st.Error = err.Error()
			problems = append(problems, err.Error())
		} else {
			st.Error = ""
		}
	}

	delete(f.extra, "items")
	for i, li := range f.recon.items {
		if !li.Valid() {
			msg := fmt.Sprintf("line %d is incomplete", i+1)
			f.extra["items"] = msg
			problems = append(problems, msg)
			break
		}
	}

	if len(problems) > 0 {
		f.state = StateFailed
		f.mu.Unlock()
		return nil, NewLocalValidationError(problems)
	}

	// The full-validation endpoint wants the bare 13 digits; the service
	// adds the T prefix itself when it normalizes.
	inv := f.invoiceLocked()
	inv.SellerRegNo = digitsOf(inv.SellerRegNo)
	payload := rules.BuildPayload(inv, f.lang)

	validator := f.validator
	generator := f.generator
	artifactDir := f.artifactDir
	f.state = StateSubmitting
	f.mu.Unlock()

	if validator == nil {
		f.fail("no rules service configured")
		return nil, NewSubmitRejectedError("no rules service configured", nil)
	}

	report, err := validator.Validate(ctx, payload)
	if err != nil {
		var remote *rules.RemoteError
		if errors.As(err, &remote) {
			f.fail(remote.Message)
			return nil, NewSubmitRejectedError(remote.Message, remote.Details)
		}
		f.fail(err.Error())
		return nil, NewSubmitRejectedError(fmt.Sprintf("validation request failed: %v", err), nil)
	}

	result := &SubmissionResult{
		ID:          uuid.New(),
		Compliant:   report.Compliant,
		IssuesCount: report.IssuesCount,
		Issues:      report.Issues,
		Normalized:  report.Normalized,
		Record:      payload,
		Form:        inv,
	}
	result.Warnings = append(result.Warnings, report.Issues...)

	f.setState(StateGeneratingArtifact)

	if generator != nil {
		if path, err := writeArtifact(ctx, generator, payload, artifactDir, result.ID); err != nil {
			result.Warnings = append(result.Warnings, NewArtifactError(err).Error())
		} else {
			result.ArtifactPath = path
		}
	}

	f.setState(StateDone)
	return result, nil
}

// writeArtifact renders the document and writes it next to the
// submission ID so repeated submits never clobber each other.
func writeArtifact(ctx context.Context, g Generator, payload *rules.InvoicePayload, dir string, id uuid.UUID) (string, error) {
	data, err := g.Generate(ctx, payload)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("invoice-%s.pdf", id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *Form) setState(s SubmitState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Form) fail(msg string) {
	f.mu.Lock()
	f.state = StateFailed
	f.extra["submit"] = msg
	f.mu.Unlock()
}
