package form

import (
	"context"
	"time"

	"github.com/audos/intake/invoice"
	"github.com/audos/intake/rules"
)

// coordinator schedules debounced remote field checks and keeps stale
// responses from overwriting fresh state.
//
// Each field carries a monotonic generation counter. Every edit or blur
// bumps it; a response only lands if its generation still matches when
// it returns. Without this a slow check for "old value" can arrive
// after the fast check for "new value" and flip the field to the wrong
// verdict.
//
// All methods require Form's mutex to be held by the caller; the timer
// and response callbacks re-acquire it themselves.
type coordinator struct {
	form   *Form
	timers map[invoice.Field]*time.Timer
	gens   map[invoice.Field]uint64
}

func newCoordinator(f *Form) *coordinator {
	return &coordinator{
		form:   f,
		timers: make(map[invoice.Field]*time.Timer),
		gens:   make(map[invoice.Field]uint64),
	}
}

// edited handles a keystroke: a non-empty value invalidates any
// scheduled or in-flight check and marks the field pending. An empty
// value leaves the prior status and error on screen until blur
// re-evaluates the local rules.
func (c *coordinator) edited(field invoice.Field, value string) {
	if value == "" {
		return
	}

	c.cancel(field)
	c.gens[field]++

	st := c.form.fields[field]
	st.Status = StatusPending
	st.Error = ""
}

// blurred schedules the debounced remote check for a locally valid
// value. Fields without a remote check, empty values, and forms without
// a checker settle back to unvalidated immediately.
func (c *coordinator) blurred(field invoice.Field, value string) {
	st := c.form.fields[field]

	if value == "" || !field.RemoteChecked() || c.form.checker == nil {
		st.Status = StatusUnvalidated
		return
	}

	c.cancel(field)
	c.gens[field]++
	gen := c.gens[field]
	st.Status = StatusPending

	c.timers[field] = time.AfterFunc(c.form.debounce, func() {
		c.fire(field, gen, value)
	})
}

// fire runs the remote check once the debounce window elapses. It
// re-checks the generation before sending and again before applying the
// result; either mismatch means the value changed underneath and the
// response is dropped.
func (c *coordinator) fire(field invoice.Field, gen uint64, value string) {
	c.form.mu.Lock()
	if c.gens[field] != gen {
		c.form.mu.Unlock()
		return
	}
	c.form.fields[field].Status = StatusValidating
	checker := c.form.checker
	c.form.mu.Unlock()

	wire, ok := invoice.WireName(field)
	if !ok {
		wire = string(field)
	}
	res, err := checker.CheckField(context.Background(), wire, wireValue(field, value))

	c.form.mu.Lock()
	defer c.form.mu.Unlock()

	if c.gens[field] != gen {
		return // superseded while in flight
	}

	st := c.form.fields[field]
	switch {
	case err != nil:
		st.Status = StatusInvalid
		st.Error = "validation request failed"
	case res.Pass():
		st.Status = StatusValid
		st.Error = ""
	default:
		st.Status = StatusInvalid
		msg := rules.ExtractMessage(res, c.form.lang)
		if msg == "" {
			msg = "value was rejected"
		}
		st.Error = NewRemoteFieldError(field, msg).Error()
	}
}

// cancel stops the field's pending timer, if any. An in-flight request
// cannot be stopped, but bumping the generation makes its result land
// dead.
func (c *coordinator) cancel(field invoice.Field) {
	if t, ok := c.timers[field]; ok {
		t.Stop()
		delete(c.timers, field)
	}
}

// cancelAll invalidates every scheduled and in-flight check, used on
// reset and when a draft is loaded over the current state.
func (c *coordinator) cancelAll() {
	for field, t := range c.timers {
		t.Stop()
		delete(c.timers, field)
	}
	for field := range c.gens {
		c.gens[field]++
	}
}
