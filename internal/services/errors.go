package services

import (
	"errors"

	"github.com/waxswap/backend/internal/ledger"
)

// Error taxonomy for trade operations. Handlers map these to HTTP statuses;
// everything else surfaces as an internal error.
var (
	// ErrValidation covers malformed or out-of-bounds input.
	ErrValidation = errors.New("validation failed")
	// ErrOwnership is returned when an offered file is not owned by the
	// offering party.
	ErrOwnership = errors.New("file not owned by offering party")
	// ErrNotTransferable is returned when a referenced file cannot change
	// hands.
	ErrNotTransferable = errors.New("file is not transferable")
	// ErrConflict is returned when settlement loses a lock race or observes
	// a stale reference. Retryable by the caller once the state settles.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for unknown trades or files.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller is not the party allowed to
	// perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyResolved is returned when acting on a trade that is no
	// longer pending.
	ErrAlreadyResolved = errors.New("trade already resolved")
)

// ErrInsufficientCredits is the ledger's debit failure, re-exported so
// callers need only this package's taxonomy.
var ErrInsufficientCredits = ledger.ErrInsufficientCredits
