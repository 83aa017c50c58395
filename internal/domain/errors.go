package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable failure category. Every failed
// invocation surfaces exactly one kind, so callers can branch on the
// category without parsing message text.
type Kind string

const (
	// KindInvalidArguments marks a request whose arguments failed
	// validation before any remote call.
	KindInvalidArguments Kind = "InvalidArguments"

	// KindUnknownTool marks a call to a tool name the server does not
	// offer.
	KindUnknownTool Kind = "UnknownTool"

	// KindInvalidDurationFormat marks a duration string the parser
	// rejected.
	KindInvalidDurationFormat Kind = "InvalidDurationFormat"

	// KindBatchTooLarge marks a bulk request exceeding the batch limit.
	KindBatchTooLarge Kind = "BatchTooLarge"

	// KindRemoteNotFound marks a missing remote entity (404).
	KindRemoteNotFound Kind = "RemoteNotFound"

	// KindRemoteUnauthorized marks rejected credentials or insufficient
	// permissions (401, 403).
	KindRemoteUnauthorized Kind = "RemoteUnauthorized"

	// KindRemoteRateLimited marks throttling by the remote system (429).
	KindRemoteRateLimited Kind = "RemoteRateLimited"

	// KindRemoteValidationRejected marks a payload the remote system
	// refused (400, 422).
	KindRemoteValidationRejected Kind = "RemoteValidationRejected"

	// KindRemoteUnavailable marks network failures and remote 5xx errors.
	KindRemoteUnavailable Kind = "RemoteUnavailable"

	// KindCancelled marks an invocation abandoned because its context was
	// cancelled or timed out.
	KindCancelled Kind = "Cancelled"
)

// ToolError is a classified failure. Field is set for argument validation
// failures so the message can name the offending argument.
type ToolError struct {
	Kind    Kind
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (argument %q)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Transient reports whether the failure is worth retrying.
func (e *ToolError) Transient() bool {
	return e.Kind == KindRemoteRateLimited || e.Kind == KindRemoteUnavailable
}

// NewToolError builds a classified error with a formatted message.
func NewToolError(kind Kind, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument builds an InvalidArguments error naming the argument
// that failed validation.
func InvalidArgument(field, format string, args ...interface{}) *ToolError {
	return &ToolError{
		Kind:    KindInvalidArguments,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf classifies an arbitrary error. Context cancellation maps to
// Cancelled; anything unclassified is treated as RemoteUnavailable.
func KindOf(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindRemoteUnavailable
}
