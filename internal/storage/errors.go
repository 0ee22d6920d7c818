package storage

import (
	"errors"

	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/sentinel"
)

// Translate maps a backend error onto a domain error about what. Domain
// errors raised inside a transaction pass through unchanged.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.Is(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, what)
	}
}
