package form

// Status tracks where a field sits in its asynchronous validation
// lifecycle. A field starts unvalidated, goes pending when a remote
// check is scheduled, validating once the request is in flight, and
// lands on valid or invalid. Any new edit sends it back to pending.
type Status int

const (
	StatusUnvalidated Status = iota
	StatusPending
	StatusValidating
	StatusValid
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusValidating:
		return "validating"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	default:
		return "unvalidated"
	}
}

// FieldState is a snapshot of one top-level field: the entered value,
// whether the user has visited it, the currently displayed error (empty
// when none), and the async validation status.
//
// Field states are created at form construction and never destroyed,
// only reset.
type FieldState struct {
	Value   string
	Touched bool
	Error   string
	Status  Status
}
