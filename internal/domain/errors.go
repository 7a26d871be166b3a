package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
)

// ValidationError carries per-field messages keyed by the JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage leaves business errors untouched and wraps anything else
// as a StorageError.
func WrapStorage(op string, err error) error {
	if err == nil || IsBusinessError(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsBusinessError(err error) bool {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrRecipientNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidState):
		return true
	}
	return false
}
