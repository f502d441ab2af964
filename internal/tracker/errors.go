package tracker

import (
	"errors"
	"fmt"
)

// Kind classifies an error surfaced by the tracker client.
type Kind string

const (
	KindInvalidCredential Kind = "INVALID_CREDENTIAL"
	KindNetwork           Kind = "NETWORK"
	KindRemoteAPI         Kind = "REMOTE_API"
	KindDecoding          Kind = "DECODING"
	KindInvalidURL        Kind = "INVALID_URL"
	KindUnknown           Kind = "UNKNOWN"
)

// Error carries a classified failure from the tracker API.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified tracker error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from any error, unwrapping as needed; foreign
// errors map to unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Kind("")
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
