package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSideMissing indicates that a learning mode does not define the
	// requested side. This is a configuration fault and is surfaced before
	// any schedule is built.
	ErrSideMissing = errors.New("learning mode does not define side")
	// ErrEmptyText indicates that a synthesis request carried no text.
	ErrEmptyText = errors.New("text cannot be empty")
)

// SynthesisError reports a backend failure together with the vocabulary entry
// that triggered it, so a failed run names the offending text for manual
// correction of the source list.
type SynthesisError struct {
	Entry int
	Side  Side
	Text  string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf(
		"synthesis failed for entry %d, %s side (%q): %v",
		e.Entry, e.Side, e.Text, e.Err,
	)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
