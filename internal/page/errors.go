package page

import (
	"errors"
	"fmt"
)

// FaultKind classifies a transient page failure.
type FaultKind string

const (
	KindNotFound   FaultKind = "not_found"
	KindTimeout    FaultKind = "timeout"
	KindStale      FaultKind = "stale"
	KindNavigation FaultKind = "navigation"
)

// Fault is a page failure expected to clear after a reload.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Fault) Unwrap() error { return e.Err }

// NewFault builds a Fault for op.
func NewFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// IsTransient reports whether err carries a *Fault.
func IsTransient(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
