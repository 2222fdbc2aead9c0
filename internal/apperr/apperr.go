// Package apperr holds the error taxonomy shared by the domain packages.
// Callers classify with errors.Is; everything that is neither ErrInvalidInput
// nor ErrNotFound is an unexpected failure.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Message текст ошибки для клиента API.
type Message struct {
	Error string `json:"error"`
}
