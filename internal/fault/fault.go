// Package fault tags external-collaborator failures with a coarse
// category so the sync loop can log them uniformly instead of matching
// on library-specific error types.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a tick failure.
type Kind int

const (
	// KindUnknown covers errors raised outside the tagged boundaries.
	KindUnknown Kind = iota
	// KindNetwork covers rate-feed, spreadsheet, and bot transport failures.
	KindNetwork
	// KindStore covers database connectivity and SQL failures.
	KindStore
	// KindIntegrity covers malformed source data, e.g. ragged columns.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStore:
		return "store"
	case KindIntegrity:
		return "data_integrity"
	default:
		return "unknown"
	}
}

// Error carries the category alongside the underlying cause.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind reports the category assigned at the boundary.
func (e *Error) Kind() Kind {
	return e.kind
}

// Network wraps err as a transient transport failure. Nil stays nil.
func Network(err error) error {
	return wrap(KindNetwork, err)
}

// Store wraps err as a persistence failure. Nil stays nil.
func Store(err error) error {
	return wrap(KindStore, err)
}

// Integrity wraps err as a source-data defect. Nil stays nil.
func Integrity(err error) error {
	return wrap(KindIntegrity, err)
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

// KindOf extracts the category from anywhere in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindUnknown
}
