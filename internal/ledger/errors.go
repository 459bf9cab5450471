package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the asset, its ledger or a holder record is absent.
	ErrNotFound = errors.New("ledger: not found")

	// ErrInvalidRequest indicates a non-positive or out-of-bound unit count.
	ErrInvalidRequest = errors.New("ledger: invalid request")

	// ErrInsufficientSupply indicates fewer units are offered than requested.
	// It wraps ErrInvalidRequest.
	ErrInsufficientSupply = fmt.Errorf("%w: insufficient units offered for resale", ErrInvalidRequest)

	// ErrInvariantViolation indicates a holder list that breaks supply
	// conservation, non-negativity or offered <= held.
	ErrInvariantViolation = errors.New("ledger: invariant violation")

	// ErrPersistenceFailure indicates a storage error. Retry semantics depend
	// on the stage at which it occurred.
	ErrPersistenceFailure = errors.New("ledger: persistence failure")

	// ErrConcurrentUpdate indicates the stored ledger version moved since it
	// was loaded. It wraps ErrPersistenceFailure.
	ErrConcurrentUpdate = fmt.Errorf("%w: ledger version changed since load", ErrPersistenceFailure)

	// ErrPartialSuccess indicates the ledger was updated but the holdings
	// index was not.
	ErrPartialSuccess = errors.New("ledger: partial success")
)

// PartialSuccessError carries what is needed to reconcile a purchase whose
// ledger write committed but whose holdings index write did not.
type PartialSuccessError struct {
	PurchaseID string
	AssetID    string
	BuyerID    string
	Units      int64
	LedgerOK   bool
	IndexOK    bool
	Err        error
}

func (e *PartialSuccessError) Error() string {
	return fmt.Sprintf("ledger: partial success: purchase %s asset %s buyer %s units %d: ledger_ok=%t index_ok=%t: %v",
		e.PurchaseID, e.AssetID, e.BuyerID, e.Units, e.LedgerOK, e.IndexOK, e.Err)
}

// Is lets errors.Is(err, ErrPartialSuccess) match.
func (e *PartialSuccessError) Is(target error) bool {
	return target == ErrPartialSuccess
}

func (e *PartialSuccessError) Unwrap() error {
	return e.Err
}
