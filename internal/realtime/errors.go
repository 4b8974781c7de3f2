package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrClientDisconnected  = errors.New("client disconnected")
	ErrSlowConsumer        = errors.New("send buffer full")
	ErrNotSubscribed       = errors.New("not subscribed to channel")
	ErrNotVoiceParticipant = errors.New("not a voice participant")
)

// ErrorKind classifies request failures so the connection handler can decide
// whether to answer with an error frame or tear the connection down.
type ErrorKind int

const (
	KindAuthentication ErrorKind = iota
	KindValidation
	KindAuthorization
	KindTransport
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error is the failure type returned by hub operations. Code is the machine
// readable value echoed back to the client in error frames.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func newAuthorizationError(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func newInternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// KindOf reports the classification of err, defaulting to KindInternal for
// errors that did not originate in this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
