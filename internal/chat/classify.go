package chat

import (
	"context"
	"errors"

	"github.com/containerd/errdefs"
)

// FailureKind is the user-facing category of a failed assistant call.
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailureUnauthorized
	FailureUnprocessable
	FailureInternal
	FailureConnectivity
)

var failureText = map[FailureKind]string{
	FailureGeneric:       "I'm experiencing technical difficulties. Please try again in a moment.",
	FailureUnauthorized:  "Request not authorized. Please check the API configuration.",
	FailureUnprocessable: "I didn't understand your request format. Could you please rephrase your question?",
	FailureInternal:      "I'm having some internal issues right now. Please try again in a few minutes.",
	FailureConnectivity:  "I'm having trouble connecting. Please check your internet connection and try again.",
}

// Message returns the text shown to the user for this kind.
func (k FailureKind) Message() string {
	if text, ok := failureText[k]; ok {
		return text
	}
	return failureText[FailureGeneric]
}

func (k FailureKind) String() string {
	switch k {
	case FailureUnauthorized:
		return "unauthorized"
	case FailureUnprocessable:
		return "unprocessable"
	case FailureInternal:
		return "internal"
	case FailureConnectivity:
		return "connectivity"
	default:
		return "generic"
	}
}

// Classify maps any error, including nil, to a FailureKind. This is the
// only place user-facing failure wording is chosen.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureGeneric
	case errdefs.IsUnauthorized(err):
		return FailureUnauthorized
	case errdefs.IsInvalidArgument(err):
		return FailureUnprocessable
	case errdefs.IsInternal(err):
		return FailureInternal
	case errdefs.IsUnavailable(err),
		errdefs.IsDeadlineExceeded(err),
		errors.Is(err, context.DeadlineExceeded):
		return FailureConnectivity
	default:
		return FailureGeneric
	}
}
