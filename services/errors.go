package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBank is returned for a bank id the provider does not list.
	// Rejected before any provider I/O.
	ErrInvalidBank = errors.New("unknown or unsupported bank")

	// ErrSyncInProgress is returned when a sync is requested for an account
	// that already has one running.
	ErrSyncInProgress = errors.New("sync already in progress for this account")

	// ErrRequisitionNotFound is returned when a callback carries a reference
	// we never issued (or that belongs to another user).
	ErrRequisitionNotFound = errors.New("requisition not found")
)

// ProviderError wraps any failure talking to the aggregation provider,
// including timeouts. It never implies local state was mutated.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError wraps a store write failure. Persisted is the number of
// rows committed before the failure, so callers can observe partial success
// and retry safely.
type PersistenceError struct {
	Persisted int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed after %d rows: %v", e.Persisted, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
