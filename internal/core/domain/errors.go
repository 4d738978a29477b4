package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrOutOfStock         = errors.New("out of stock")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("invalid state")
	ErrNotFound           = errors.New("not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrDuplicateRequest   = errors.New("duplicate request")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StockError reports the product that could not cover a requested quantity.
// Available is -1 when the product does not exist.
type StockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("out of stock: product %s does not exist", e.ProductID)
	}
	return fmt.Sprintf("out of stock: %s has %d, requested %d", e.label(), e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrOutOfStock }

func (e *StockError) label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ProductID
}

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for f, m := range e.Fields {
			return fmt.Sprintf("invalid input: %s %s", f, m)
		}
	}
	return fmt.Sprintf("invalid input: %d fields rejected", len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// IsKnown reports whether err already carries one of the domain kinds.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrInvalidInput, ErrOutOfStock, ErrForbidden, ErrInvalidState, ErrNotFound,
		ErrStoreUnavailable, ErrUnauthenticated, ErrDuplicateRequest, ErrConflict,
		ErrInvalidCredentials,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
