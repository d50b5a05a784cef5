// Package errs provides structured error envelopes for the feed handler.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a failure category from the error taxonomy.
type Code string

const (
	// CodeTransport indicates a connect/read/close failure on a venue socket.
	CodeTransport Code = "transport"
	// CodeParse indicates a malformed or unrecognisable venue payload.
	CodeParse Code = "parse"
	// CodeSink indicates a failure while writing a row to a sink.
	CodeSink Code = "sink"
	// CodeConfig indicates invalid CLI arguments or subscription input.
	CodeConfig Code = "config"
	// CodeInvariant indicates an internal invariant violation.
	CodeInvariant Code = "invariant"
)

// E captures structured error information produced across the feed handler.
type E struct {
	Venue     string
	Code      Code
	Message   string
	Payload   string
	Statement string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the venue and failure code.
func New(venue string, code Code, opts ...Option) *E {
	e := &E{
		Venue:     strings.TrimSpace(venue),
		Code:      code,
		Message:   "",
		Payload:   "",
		Statement: "",
		cause:     nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithPayload captures the offending wire payload for parse failures.
func WithPayload(payload string) Option {
	return func(e *E) {
		e.Payload = payload
	}
}

// WithStatement captures the SQL or command text that a sink rejected.
func WithStatement(stmt string) Option {
	return func(e *E) {
		e.Statement = strings.TrimSpace(stmt)
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	venue := strings.TrimSpace(e.Venue)
	if venue == "" {
		venue = "unknown"
	}
	parts = append(parts, "venue="+venue)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Statement != "" {
		parts = append(parts, "statement="+strconv.Quote(e.Statement))
	}
	if e.Payload != "" {
		parts = append(parts, "payload="+strconv.Quote(e.Payload))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the taxonomy code from err, or the empty code when err does
// not carry an envelope.
func CodeOf(err error) Code {
	var envelope *E
	if errors.As(err, &envelope) {
		return envelope.Code
	}
	return ""
}

// IsParse reports whether err is (or wraps) a parse failure. The gateway
// dispatch loop uses this to log and drop the message without tearing down
// the connection.
func IsParse(err error) bool { return CodeOf(err) == CodeParse }
