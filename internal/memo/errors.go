package memo

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrSecretMismatch = errors.New("secret mismatch")
	ErrStorage        = errors.New("storage error")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// wrapStorage leaves domain errors alone and tags everything else as a
// storage failure of op.
func wrapStorage(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSecretMismatch),
		errors.Is(err, ErrStorage):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
}
