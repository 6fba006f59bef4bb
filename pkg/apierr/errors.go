// Package apierr is the single error currency threaded through the mining
// pipeline, the planner, and the heater. Every failure that can reach a
// caller is expressed as an *Error so it can be rendered as the problem
// document described in the system's external interface contract.
package apierr

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies a failure the way the pipeline's error handling design
// does: request shape problems, scope violations, missing entities,
// concurrent-state conflicts, cooldowns, transient upstream trouble, and
// everything else.
type Kind string

const (
	KindInvalid     Kind = "request_invalid"
	KindAccessDenied Kind = "access_denied"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream_unavailable"
	KindInternal    Kind = "internal"
)

// Error is a structured failure carrying enough context to build a problem
// document without re-deriving it from a bare error string.
type Error struct {
	Kind       Kind
	Message    string
	Pointer    string // JSON-pointer to the offending field, request_invalid only
	Cause      error
	IncidentID string // set by Internal for Kind == KindInternal
}

func (e *Error) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Pointer)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Invalid builds a field-precise request_invalid error.
func Invalid(pointer, message string) *Error {
	return &Error{Kind: KindInvalid, Message: message, Pointer: pointer}
}

// Invalidf is Invalid with formatted message.
func Invalidf(pointer, format string, args ...interface{}) *Error {
	return Invalid(pointer, fmt.Sprintf(format, args...))
}

// AccessDenied builds an access_denied error for a cross-account or
// cross-scope read attempt.
func AccessDenied(message string) *Error {
	return &Error{Kind: KindAccessDenied, Message: message}
}

// NotFound builds a not_found error for a missing entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict builds a conflict error for a concurrent state mutation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimited builds a rate_limited error while a cooldown is active.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// Upstream wraps a transient failure from one of the four stores or an
// external collaborator (JIRA auth, Slack webhook), preserving the cause.
func Upstream(cause error) *Error {
	return &Error{Kind: KindUpstream, Message: "upstream store unavailable", Cause: cause}
}

// Upstreamf is Upstream with a custom message.
func Upstreamf(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Internal wraps an unexpected failure and mints an incident id so it can
// be correlated in logs without leaking internals to the caller.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Cause: cause, IncidentID: uuid.NewString()}
}

// As reports whether err is (or wraps) an *Error, mirroring errors.As
// without forcing callers to import both packages.
func As(err error) (*Error, bool) {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return target, false
}

// ProblemDocument is the wire shape for every external failure, per the
// system's error envelope contract.
type ProblemDocument struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	Pointer  string `json:"pointer,omitempty"`
}

var statusByKind = map[Kind]int{
	KindInvalid:      400,
	KindAccessDenied: 403,
	KindNotFound:     404,
	KindConflict:     409,
	KindRateLimited:  429,
	KindUpstream:     503,
	KindInternal:     500,
}

// AsProblemDocument renders e as the external error envelope. instance is
// typically a request id supplied by the caller.
func (e *Error) AsProblemDocument(instance string) ProblemDocument {
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = 500
	}
	detail := e.Message
	if e.Kind == KindInternal {
		detail = fmt.Sprintf("%s (incident %s)", e.Message, e.IncidentID)
	}
	return ProblemDocument{
		Type:     "https://prodflow.dev/errors/" + string(e.Kind),
		Title:    string(e.Kind),
		Status:   status,
		Detail:   detail,
		Instance: instance,
		Pointer:  e.Pointer,
	}
}
