package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailure      = errors.New("fetch failure")
	ErrParseFailure      = errors.New("parse failure")
	ErrStoreConnection   = errors.New("store connection failure")
	ErrContractViolation = errors.New("contract violation")
)

// StoreError names the store that failed; it matches ErrStoreConnection.
type StoreError struct {
	Store string
	Err   error
}

// NewStoreError wraps err for the given store, keeping nil as nil.
func NewStoreError(store string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Store: store, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %v", e.Store, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStoreConnection) hold for every StoreError,
// unless the wrapped error is a contract violation.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreConnection && !errors.Is(e.Err, ErrContractViolation)
}
