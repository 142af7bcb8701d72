// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalclient

import (
	"errors"
	"fmt"
)

// Kind classifies why an evaluation call failed.
type Kind int

const (
	// KindValidation is a local rejection before any network attempt.
	KindValidation Kind = iota + 1
	// KindNetwork covers transport failures and timeouts.
	KindNetwork
	// KindServerRejected is an explicit non-2xx answer from the service.
	KindServerRejected
	// KindMalformedResponse is a 2xx answer whose body could not be used.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServerRejected:
		return "server_rejected"
	case KindMalformedResponse:
		return "malformed_response"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Generic messages shown when the failure carries nothing the user can act on.
const (
	networkMessage   = "Could not reach the evaluation service. Please try again."
	malformedMessage = "The evaluation service returned an unexpected response. Please try again."
)

// EvalError is the error returned by every Client operation.
type EvalError struct {
	Kind Kind

	// Status is the HTTP status code for KindServerRejected and
	// KindMalformedResponse; zero otherwise.
	Status int

	// Message is the validation message or the server's own message.
	Message string

	Err error
}

func (e *EvalError) Error() string {
	switch e.Kind {
	case KindValidation:
		return "invalid input: " + e.Message
	case KindServerRejected:
		return fmt.Sprintf("evaluation service rejected request (HTTP %d): %s", e.Status, e.Message)
	case KindMalformedResponse:
		if e.Err != nil {
			return fmt.Sprintf("malformed evaluation response: %v", e.Err)
		}
		return "malformed evaluation response: " + e.Message
	default:
		if e.Err != nil {
			return fmt.Sprintf("evaluation service unreachable: %v", e.Err)
		}
		return "evaluation service unreachable"
	}
}

func (e *EvalError) Unwrap() error { return e.Err }

// UserMessage returns the text to show the user: the server's message
// verbatim for a rejection, the validation message for local errors, and a
// generic retryable message otherwise.
func (e *EvalError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return e.Message
	case KindServerRejected:
		if e.Message != "" {
			return e.Message
		}
	case KindMalformedResponse:
		return malformedMessage
	}
	return networkMessage
}

// KindOf returns the Kind of err if it wraps an *EvalError, and zero otherwise.
func KindOf(err error) Kind {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return 0
}

// IsKind reports whether err wraps an *EvalError of the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// UserMessage returns the user-facing text for any error. Errors that are
// not *EvalError get the generic message.
func UserMessage(err error) string {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.UserMessage()
	}
	return networkMessage
}

func validationError(msg string) *EvalError {
	return &EvalError{Kind: KindValidation, Message: msg}
}
