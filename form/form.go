// Package form implements the reconciliation and validation engine
// behind manual invoice entry.
//
// The engine uses a layered approach, leaves first:
//
//  1. Reconciliation (reconcile.go)
//     - Keeps the editable raw buffers and the numeric line-item model
//       synchronized without corrupting in-progress typing
//     - Detects external changes via an explicit baseline snapshot
//
//  2. Local validation (localcheck.go)
//     - Pure, synchronous rules: required fields, date shape,
//       registration-number digit count
//     - Gates the remote checks and runs again authoritatively on submit
//
//  3. Remote coordination (coordinator.go)
//     - Debounces per-field checks against the rules service
//     - Generation counters discard superseded responses
//
//  4. Aggregation (sections.go)
//     - Pure computation of per-section and whole-form validity
//
//  5. Submission (submit.go)
//     - Two-phase flow: validate remotely, then generate the artifact
//     - Artifact failure is non-fatal to a successful validation
//
// Concurrency model: the UI event loop becomes one mutex. Debounce
// timers and response goroutines re-enter through the lock, so every
// state transition (raw+numeric update, status flip) is atomic and no
// caller ever observes a half-applied edit.
package form

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/audos/intake/invoice"
	"github.com/audos/intake/rules"
)

// DefaultDebounce is the quiet period after blur before a remote field
// check fires. Rapid blurs within the window coalesce into one call.
const DefaultDebounce = 500 * time.Millisecond

// FieldChecker runs a live check for one field. Implemented by
// *rules.Client; fakes stand in for tests.
type FieldChecker interface {
	CheckField(ctx context.Context, field string, value any) (*rules.FieldCheckResult, error)
}

// Validator validates a complete normalized invoice.
type Validator interface {
	Validate(ctx context.Context, payload *rules.InvoicePayload) (*rules.ValidationReport, error)
}

// Generator renders the invoice artifact for a validated payload.
type Generator interface {
	Generate(ctx context.Context, payload *rules.InvoicePayload) ([]byte, error)
}

// Form owns the in-memory state of one manual entry session: field
// states, the line-item reconciler, non-field errors, the validation
// coordinator, and the submission state machine.
//
// All methods are safe for concurrent use; a single mutex serializes
// state transitions.
type Form struct {
	mu     sync.Mutex
	fields map[invoice.Field]*FieldState
	recon  *reconciler
	extra  map[string]string // non-field errors, keyed "items"/"totals"/"submit"
	co     *coordinator
	state  SubmitState

	lang        string
	debounce    time.Duration
	artifactDir string

	checker   FieldChecker
	validator Validator
	generator Generator
}

// Option configures a Form.
type Option func(*Form)

// WithClient points the form at a rules service for live checks,
// submission validation, and artifact generation.
func WithClient(c *rules.Client) Option {
	return func(f *Form) {
		f.checker = c
		f.validator = c
		f.generator = c
	}
}

// WithChecker overrides just the live field checker.
func WithChecker(c FieldChecker) Option {
	return func(f *Form) { f.checker = c }
}

// WithValidator overrides just the submission validator.
func WithValidator(v Validator) Option {
	return func(f *Form) { f.validator = v }
}

// WithGenerator overrides just the artifact generator.
func WithGenerator(g Generator) Option {
	return func(f *Form) { f.generator = g }
}

// WithDebounce overrides the debounce delay for remote field checks.
func WithDebounce(d time.Duration) Option {
	return func(f *Form) { f.debounce = d }
}

// WithLanguage sets the language tag ("en" or "ja") used for remote
// messages and the submission payload. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(f *Form) { f.lang = lang }
}

// WithArtifactDir sets the directory artifact files are written to.
// Defaults to the system temp directory.
func WithArtifactDir(dir string) Option {
	return func(f *Form) { f.artifactDir = dir }
}

// New creates a form with one default line item and empty field states.
func New(opts ...Option) *Form {
	f := &Form{
		fields:   make(map[invoice.Field]*FieldState, len(invoice.Fields())),
		recon:    newReconciler(),
		extra:    make(map[string]string),
		lang:     "en",
		debounce: DefaultDebounce,
		state:    StateIdle,
	}
	for _, field := range invoice.Fields() {
		f.fields[field] = &FieldState{}
	}
	for _, opt := range opts {
		opt(f)
	}
	f.co = newCoordinator(f)
	return f
}

// SetField records an edit to a top-level field. A non-empty value
// resets the field's validation status to pending and cancels any
// scheduled or in-flight check; an empty value leaves prior status and
// error untouched until blur re-evaluates the local rules.
func (f *Form) SetField(field invoice.Field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.fields[field]
	if !ok {
		return
	}
	st.Value = value
	f.co.edited(field, value)
}

// BlurField marks the field touched and runs the local rules. A local
// failure sets the inline error and stops; a locally valid, non-empty
// value on a remotely checked field schedules a debounced remote check.
func (f *Form) BlurField(field invoice.Field) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.fields[field]
	if !ok {
		return
	}
	st.Touched = true

	if err := CheckLocal(field, st.Value); err != nil {
		st.Error = err.Error()
		st.Status = StatusUnvalidated
		return
	}
	st.Error = ""

	f.co.blurred(field, st.Value)
}

// Field returns a snapshot of one field's state.
func (f *Form) Field(field invoice.Field) FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()

	if st, ok := f.fields[field]; ok {
		return *st
	}
	return FieldState{}
}

// EditItem records an edit to one line-item cell. Raw buffer and
// numeric model update atomically; totals read right after this call
// already reflect the keystroke.
func (f *Form) EditItem(index int, column ItemColumn, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recon.edit(index, column, raw)
}

// BlurItem normalizes the raw buffer of one cell after editing ends.
func (f *Form) BlurItem(index int, column ItemColumn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recon.blur(index, column)
}

// AddRow appends the default line item.
func (f *Form) AddRow() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recon.addRow()
}

// RemoveRow removes a line. Removing the last remaining row is a
// no-op, reported false.
func (f *Form) RemoveRow(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recon.removeRow(index)
}

// Items returns a copy of the numeric line-item model.
func (f *Form) Items() []invoice.LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recon.itemsCopy()
}

// RawItems returns a copy of the editable raw buffers for rendering.
func (f *Form) RawItems() []RawLineItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recon.rawCopy()
}

// ItemAmount returns the display amount for one line, computed from the
// parsed raw buffers so an in-progress edit shows immediately.
func (f *Form) ItemAmount(index int) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recon.displayAmount(index)
}

// Totals computes the invoice totals from the numeric model.
func (f *Form) Totals() invoice.Totals {
	f.mu.Lock()
	defer f.mu.Unlock()

	return invoice.ComputeTotals(f.recon.items)
}

// Validity recomputes section and whole-form validity from the current
// state.
func (f *Form) Validity() SectionValidity {
	f.mu.Lock()
	defer f.mu.Unlock()

	return AggregateValidity(f.fieldSnapshot(), f.recon.items, f.extra)
}

// ValidationsSettled reports whether no field check is scheduled or in
// flight. Callers that want remote results before reading validity can
// poll this.
func (f *Form) ValidationsSettled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, st := range f.fields {
		if st.Status == StatusPending || st.Status == StatusValidating {
			return false
		}
	}
	return true
}

// Invoice assembles the current form data into an invoice value.
func (f *Form) Invoice() invoice.Invoice {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.invoiceLocked()
}

func (f *Form) invoiceLocked() invoice.Invoice {
	var inv invoice.Invoice
	for field, st := range f.fields {
		inv.Set(field, st.Value)
	}
	inv.Items = f.recon.itemsCopy()
	return inv
}

// Apply loads an invoice into the form, e.g. a draft from disk. Field
// values replace the current ones without marking anything touched; the
// items flow through external-change reconciliation, so raw buffers
// resynchronize while legitimately empty cells stay empty.
func (f *Form) Apply(inv invoice.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, field := range invoice.Fields() {
		st := f.fields[field]
		st.Value = inv.Get(field)
		st.Error = ""
		st.Status = StatusUnvalidated
	}
	items := inv.Items
	if len(items) == 0 {
		items = []invoice.LineItem{invoice.DefaultLineItem()}
	}
	f.recon.reconcile(items)
	f.co.cancelAll()
}

// Reset returns the form to its mount state: empty fields, one default
// row, no errors, idle submission state. Pending checks are cancelled.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, st := range f.fields {
		*st = FieldState{}
	}
	f.recon = newReconciler()
	f.extra = make(map[string]string)
	f.state = StateIdle
	f.co.cancelAll()
}

// State returns the submission state machine's current state.
func (f *Form) State() SubmitState {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// fieldSnapshot copies field states for the pure aggregator.
// Caller must hold the lock.
func (f *Form) fieldSnapshot() map[invoice.Field]FieldState {
	out := make(map[invoice.Field]FieldState, len(f.fields))
	for field, st := range f.fields {
		out[field] = *st
	}
	return out
}
