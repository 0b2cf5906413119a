// Package failure classifies build errors by how a run must react to them.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the failure class of an error.
type Kind int

const (
	// Structural errors are recovered locally: content is dropped and a
	// warning is emitted.
	Structural Kind = iota + 1
	// Consistency errors abort the run (count mismatches, missing sources).
	Consistency
	// Environment errors abort the run before any work is attempted.
	Environment
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Consistency:
		return "consistency"
	case Environment:
		return "environment"
	}
	return "unknown"
}

// ExitCode is the process exit status for a fatal error of this kind.
func (k Kind) ExitCode() int {
	switch k {
	case Consistency:
		return 3
	case Environment:
		return 4
	}
	return 1
}

// Fatal reports whether errors of this kind abort the run.
func (k Kind) Fatal() bool {
	return k == Consistency || k == Environment
}

// Error is a classified error. Details carries extra diagnostic lines,
// printed only in debug mode.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
	Details []string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Consistencyf builds a consistency error.
func Consistencyf(op, format string, args ...any) *Error {
	return New(Consistency, op, format, args...)
}

// Environmentf builds an environment error.
func Environmentf(op, format string, args ...any) *Error {
	return New(Environment, op, format, args...)
}

// WithDetails attaches diagnostic lines and returns the same error.
func (e *Error) WithDetails(lines ...string) *Error {
	e.Details = append(e.Details, lines...)
	return e
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors report 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// ExitCode maps any error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

// Report renders a delimited diagnostic block for a fatal error. Details
// are included only when debug is set.
func Report(err error, debug bool) string {
	rule := strings.Repeat("=", 72)
	var b strings.Builder
	b.WriteString(rule + "\n")
	kind := KindOf(err)
	if kind == 0 {
		b.WriteString("ERROR\n")
	} else {
		fmt.Fprintf(&b, "%s ERROR\n", strings.ToUpper(kind.String()))
	}
	b.WriteString(err.Error() + "\n")
	var fe *Error
	if debug && errors.As(err, &fe) && len(fe.Details) > 0 {
		b.WriteString("\n")
		for _, line := range fe.Details {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(rule + "\n")
	return b.String()
}
