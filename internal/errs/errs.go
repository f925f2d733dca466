// Package errs defines the error taxonomy of SPEC_FULL.md §7: every
// failure surfaced by the engine is one of a fixed set of kinds, each
// carrying a human message and an optional offender (the name of the
// step, file, or document field responsible).
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the error taxonomy.
type Kind int

const (
	// KindValidation is a schema mismatch in a loaded definition.
	KindValidation Kind = iota
	// KindGraph is a cycle or dangling dependency in a workflow DAG.
	KindGraph
	// KindData is a URI scheme mismatch or mkdir/copy/list/delete failure.
	KindData
	// KindSubmit is a backend refusal to accept a task submission.
	KindSubmit
	// KindPoll is a backend that is unreachable or returned an unparseable state.
	KindPoll
	// KindRetryExhausted is a map item that failed past its retry limit.
	KindRetryExhausted
	// KindCancelled marks a user-initiated stop; terminal, not a failure.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGraph:
		return "graph"
	case KindData:
		return "data"
	case KindSubmit:
		return "submit"
	case KindPoll:
		return "poll"
	case KindRetryExhausted:
		return "retry_exhausted"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the structured record every engine failure is surfaced as.
type Error struct {
	Kind     Kind
	Message  string
	Offender string
	Cause    error
}

func (e *Error) Error() string {
	if e.Offender != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Offender)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/As traverse the taxonomy.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target shares this error's Kind, letting callers
// match on errs.New(KindGraph, "", "") as a sentinel.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an Error of the given kind.
func New(kind Kind, message, offender string) *Error {
	return &Error{Kind: kind, Message: message, Offender: offender}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message, offender string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Offender: offender, Cause: cause}
}

// Validation, Graph, Data, Submit, Poll, RetryExhausted, and Cancelled are
// convenience constructors for the taxonomy's seven kinds.
func Validation(message, offender string) *Error { return New(KindValidation, message, offender) }
func Graph(message, offender string) *Error      { return New(KindGraph, message, offender) }
func Data(message, offender string) *Error       { return New(KindData, message, offender) }
func Submit(message, offender string) *Error     { return New(KindSubmit, message, offender) }
func Poll(message, offender string) *Error       { return New(KindPoll, message, offender) }
func RetryExhausted(message, offender string) *Error {
	return New(KindRetryExhausted, message, offender)
}
func Cancelled(message string) *Error { return New(KindCancelled, message, "") }

// List aggregates every validation failure found while processing one
// document: loading a definition is all-or-nothing, so every problem in
// the document is collected and returned together rather than stopping
// at the first one.
type List []error

func (l *List) add(err error) {
	if err != nil {
		*l = append(*l, err)
	}
}

// Add appends a non-nil error to the list.
func (l *List) Add(err error) { l.add(err) }

// Addf appends a formatted validation error with the given offender.
func (l *List) Addf(offender, format string, args ...any) {
	l.add(Validation(fmt.Sprintf(format, args...), offender))
}

// Err returns nil if the list is empty, the sole error if it holds
// exactly one, or the list itself (as an error) otherwise.
func (l List) Err() error {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	default:
		return l
	}
}

func (l List) Error() string {
	if len(l) == 0 {
		return ""
	}
	msg := l[0].Error()
	for _, e := range l[1:] {
		msg += "; " + e.Error()
	}
	return msg
}

// Is reports whether any error in the list matches target, so callers
// can use errors.Is(list, someSentinel).
func (l List) Is(target error) bool {
	for _, e := range l {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}
