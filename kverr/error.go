package kverr

import "errors"

// Error wraps a non-OK [Outcome] as a Go error, so call sites can use the
// standard errors.Is/errors.As idioms instead of comparing tags by hand.
//
// A nil *Error is not a valid error value; construct with [New] or one of
// the package-level sentinels ([ErrNoKey], [ErrVersionMismatch],
// [ErrMaybe], [ErrTimeout]).
type Error struct {
	Outcome Outcome
	// Msg is an optional human-readable detail, e.g. the key involved.
	// It does not affect Is comparisons.
	Msg string
}

// New constructs an *Error for the given outcome and optional detail
// message. Panics if outcome is OK or unspecified: OK is represented as a
// nil error, never as an *Error.
func New(outcome Outcome, msg string) *Error {
	if outcome == OK || outcome == unspecified {
		panic("kverr: New called with an outcome that is not a failure: " + outcome.String())
	}
	return &Error{Outcome: outcome, Msg: msg}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Outcome.String()
	}
	return e.Outcome.String() + ": " + e.Msg
}

// Is reports whether target is a *Error with the same Outcome, or is one
// of the package-level sentinels for that Outcome. This lets callers write
// errors.Is(err, kverr.ErrNoKey) regardless of whether err carries a detail
// message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Outcome == e.Outcome
	}
	return false
}

// Sentinels for use with errors.Is. Each carries no detail message; errors
// returned by the store/clerk/lock may wrap a distinct *Error with the same
// Outcome and a populated Msg, which still compares equal via [Error.Is].
var (
	ErrNoKey           = &Error{Outcome: NoKey}
	ErrVersionMismatch = &Error{Outcome: VersionMismatch}
	ErrMaybe           = &Error{Outcome: Maybe}
	ErrTimeout         = &Error{Outcome: Timeout}
)

// As extracts the Outcome carried by err, if err is (or wraps) an *Error.
// The second return is false for a nil error or one without an *Error in
// its chain, in which case the outcome should be treated as OK by
// convention (no error means the operation succeeded).
func As(err error) (Outcome, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Outcome, true
	}
	return unspecified, false
}
