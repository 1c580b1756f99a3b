package entity

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindForbidden     ErrorKind = "forbidden"
	KindValidation    ErrorKind = "validation"
	KindConflict      ErrorKind = "conflict"
	KindGateway       ErrorKind = "gateway"
	KindConfiguration ErrorKind = "configuration"
	KindDelivery      ErrorKind = "delivery"
)

// Error is a domain failure that callers can branch on by Kind and Code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code. An empty code in the
// target matches any code of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrInvalidTicket    = &Error{Kind: KindNotFound, Code: "invalid_ticket", Message: "ticket not found"}
	ErrMismatchedEvent  = &Error{Kind: KindValidation, Code: "mismatched_event", Message: "ticket belongs to a different event"}
	ErrAlreadyUsed      = &Error{Kind: KindConflict, Code: "already_used", Message: "ticket has already been used"}
	ErrRefunded         = &Error{Kind: KindConflict, Code: "refunded", Message: "ticket has been refunded"}
	ErrSoldOut          = &Error{Kind: KindConflict, Code: "sold_out", Message: "not enough tickets remaining"}
	ErrInvalidSignature = &Error{Kind: KindUnauthorized, Code: "invalid_signature", Message: "webhook signature mismatch"}
)

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: what + "_not_found", Message: what + " not found"}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: message}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Gateway(message string, err error) *Error {
	return &Error{Kind: KindGateway, Code: "gateway_error", Message: message, Err: err}
}

func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Code: "not_configured", Message: message}
}

func Delivery(err error) *Error {
	return &Error{Kind: KindDelivery, Code: "delivery_failed", Message: "sending email", Err: err}
}
