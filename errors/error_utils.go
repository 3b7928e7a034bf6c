// Package errors provides the coded error type used across the node and the helpers the
// network layer needs to turn an error into a peer-facing error message.
package errors

import (
	"context"
	"errors"
)

// Name returns the machine-readable kind of err as sent to peers. Errors that carry no
// validation kind (storage failures, foreign errors) surface as INTERNAL_ERROR.
func Name(err error) string {
	if code := validationCode(err); code != ERR_UNKNOWN {
		return code.String()
	}

	return ERR_INTERNAL_ERROR.String()
}

// Description returns the human-readable message of the outermost coded error.
func Description(err error) string {
	if err == nil {
		return ""
	}

	var tErr *Error
	if errors.As(err, &tErr) {
		if objectID := tErr.ObjectID(); objectID != "" {
			return tErr.Message() + " (object " + objectID + ")"
		}

		return tErr.Message()
	}

	return err.Error()
}

// IsValidationError reports whether err, or anything it wraps, carries a peer-facing
// validation kind.
func IsValidationError(err error) bool {
	return validationCode(err) != ERR_UNKNOWN
}

// CodeOf returns the code of the outermost coded error in the chain.
func CodeOf(err error) ERR {
	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr.Code()
	}

	return ERR_UNKNOWN
}

// validationCode walks the wrap chain and returns the first validation code found.
func validationCode(err error) ERR {
	for err != nil {
		if tErr, ok := err.(*Error); ok && tErr.Code().IsValidation() {
			return tErr.Code()
		}

		err = errors.Unwrap(err)
	}

	return ERR_UNKNOWN
}

// FromContext converts a finished context into a coded error.
func FromContext(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.Canceled:
		return NewContextCanceledError("context canceled", ctx.Err())
	default:
		return NewProcessingError("context deadline exceeded", ctx.Err())
	}
}
