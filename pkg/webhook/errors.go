// Package webhook verifies HMAC-signed third-party callbacks
// in constant time and translates accepted checkout events into the
// internal command the aggregate should apply.
package webhook

import "fmt"

// ErrorKind discriminates the verifier's error union.
type ErrorKind string

const (
	ErrMissingTimestamp    ErrorKind = "MissingTimestamp"
	ErrInvalidTimestamp    ErrorKind = "InvalidTimestamp"
	ErrTimestampOutOfRange ErrorKind = "TimestampOutOfRange"
	ErrMissingSignature    ErrorKind = "MissingSignature"
	ErrInvalidSignature    ErrorKind = "InvalidSignature"
	ErrPayloadParseError   ErrorKind = "PayloadParseError"
)

// Error is the verifier's typed error. TimestampOutOfRange additionally
// carries the timestamp and the verifier's clock reading at rejection time.
type Error struct {
	Kind      ErrorKind
	Timestamp int64
	Now       int64
	Detail    string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrTimestampOutOfRange:
		return fmt.Sprintf("webhook: timestamp %d outside tolerance (now: %d)", e.Timestamp, e.Now)
	case ErrPayloadParseError:
		return fmt.Sprintf("webhook: payload parse error: %s", e.Detail)
	default:
		return fmt.Sprintf("webhook: %s", e.Kind)
	}
}

func newError(kind ErrorKind) error { return &Error{Kind: kind} }

func newParseError(detail string) error {
	return &Error{Kind: ErrPayloadParseError, Detail: detail}
}

func newOutOfRangeError(timestamp, now int64) error {
	return &Error{Kind: ErrTimestampOutOfRange, Timestamp: timestamp, Now: now}
}
