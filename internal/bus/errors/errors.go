// Package errors holds the sentinel errors and failure taxonomy shared
// across the event bus.
package errors

import "errors"

var (
	// ErrIllegalState is returned when an operation runs before Start, after
	// Close, or when Start is called a second time.
	ErrIllegalState = errors.New("eventbus: illegal state")

	// ErrAddressRequired is returned when an operation is given an empty
	// address.
	ErrAddressRequired = errors.New("eventbus: address is required")

	// ErrHandlerRequired is returned when a consumer is registered with a
	// nil handler function.
	ErrHandlerRequired = errors.New("eventbus: handler is required")

	// ErrContextRequired is returned when a registration has no owning
	// execution context.
	ErrContextRequired = errors.New("eventbus: execution context is required")

	// ErrCodecNotFound is returned when createMessage cannot resolve a codec
	// by name, by default-for-type, or via the fallback system codec.
	ErrCodecNotFound = errors.New("eventbus: codec not found")

	// ErrBusRequired is returned by helpers that need a live *Bus.
	ErrBusRequired = errors.New("eventbus: bus is required")
)

// FailureType classifies why a reply future did not resolve with a message.
type FailureType int

const (
	// FailureNone marks a successful reply; ReplyError is never constructed
	// with this value.
	FailureNone FailureType = iota
	// FailureNoHandlers means the destination address had no live
	// consumers at dispatch time.
	FailureNoHandlers
	// FailureTimeout means no reply arrived within the request's
	// sendTimeout.
	FailureTimeout
	// FailureRecipientFailure means the consumer explicitly replied with a
	// failure.
	FailureRecipientFailure
	// FailureError covers any other bus-internal failure (codec error,
	// scheduling failure).
	FailureError
)

func (f FailureType) String() string {
	switch f {
	case FailureNoHandlers:
		return "NO_HANDLERS"
	case FailureTimeout:
		return "TIMEOUT"
	case FailureRecipientFailure:
		return "RECIPIENT_FAILURE"
	case FailureError:
		return "ERROR"
	default:
		return "NONE"
	}
}

// ReplyError is the error surfaced on a reply future (and, for NoHandlers,
// on an emission's write-promise) when a send/publish/request does not
// complete normally.
type ReplyError struct {
	Type    FailureType
	Address string
	Message string
}

func (e *ReplyError) Error() string {
	if e.Message == "" {
		return "eventbus: " + e.Type.String() + " on " + e.Address
	}
	return "eventbus: " + e.Type.String() + " on " + e.Address + ": " + e.Message
}

// NewReplyError builds a ReplyError for the given address.
func NewReplyError(failureType FailureType, address, message string) *ReplyError {
	return &ReplyError{Type: failureType, Address: address, Message: message}
}

// NoHandlers is a convenience constructor for the NO_HANDLERS failure.
func NoHandlers(address string) *ReplyError {
	return NewReplyError(FailureNoHandlers, address, "no handlers registered")
}

// Timeout is a convenience constructor for the TIMEOUT failure.
func Timeout(address string) *ReplyError {
	return NewReplyError(FailureTimeout, address, "reply not received before send timeout")
}
