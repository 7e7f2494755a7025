package services

import (
	"errors"
	"fmt"
)

// Kind classifies how a call to a remote service failed. Every kind is
// handled the same way by callers: notify once, clear state, no retry.
type Kind int

const (
	// KindTransport means the request never completed.
	KindTransport Kind = iota + 1
	// KindStatus means the service answered with a non-2xx status.
	KindStatus
	// KindMalformed means the body could not be used.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrTransport = &Error{Kind: KindTransport}
	ErrStatus    = &Error{Kind: KindStatus}
	ErrMalformed = &Error{Kind: KindMalformed}
)

// Error is returned by every remote service client.
type Error struct {
	Service    string
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus && e.Body != "":
		return fmt.Sprintf("%s API error: %d - %s", e.Service, e.StatusCode, e.Body)
	case e.Kind == KindStatus:
		return fmt.Sprintf("%s API error: %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Service, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s", e.Service, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Service == "" && t.Kind == e.Kind
}

// Transport wraps a failed round trip.
func Transport(service string, err error) error {
	return &Error{Service: service, Kind: KindTransport, Err: err}
}

// Status reports a non-2xx response.
func Status(service string, code int, body []byte) error {
	return &Error{Service: service, Kind: KindStatus, StatusCode: code, Body: TruncateBody(body)}
}

// Malformed reports an unusable response body.
func Malformed(service string, err error) error {
	return &Error{Service: service, Kind: KindMalformed, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not a service error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
