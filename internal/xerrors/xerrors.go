// Package xerrors defines the error taxonomy shared across the installer
// pipeline. Every fallible operation returns an error carrying one of these
// kinds so callers can branch on category without string matching.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure so the scheduler and CLI can decide whether to
// retry, prompt, or abort.
type Kind int

const (
	// KindUnknown is never constructed directly; it signals a bug if seen.
	KindUnknown Kind = iota
	KindConfig
	KindTransient
	KindRateLimited
	KindForbidden
	KindSourceUnavailable
	KindCorruption
	KindPreflight
	KindExternalTool
	KindFatalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate-limited"
	case KindForbidden:
		return "forbidden-without-premium"
	case KindSourceUnavailable:
		return "source-unavailable"
	case KindCorruption:
		return "corruption"
	case KindPreflight:
		return "preflight-failure"
	case KindExternalTool:
		return "external-tool"
	case KindFatalInvariant:
		return "fatal-invariant"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every component returns for an expected
// failure. Op names the operation that failed (e.g. "store.ImportCollection").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name. A nil err still produces a
// usable error describing the kind alone (useful for sentinel conditions
// like "masterlist not loaded").
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
