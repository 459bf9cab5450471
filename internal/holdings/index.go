// Package holdings implements the User Holdings Index: a per-user map of
// asset id to units held, kept for fast portfolio lookups. The asset ledger
// stays authoritative; this index is derived from it.
package holdings

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidUnits is returned for a non-positive increment or negative Set.
var ErrInvalidUnits = errors.New("holdings: invalid units")

// Index is a User Holdings Index backend.
type Index interface {
	// Increment adds units to userID's entry for assetID. purchaseID makes
	// the call idempotent: a second call with the same id is a no-op and
	// reports applied=false.
	Increment(ctx context.Context, purchaseID, userID, assetID string, units int64) (applied bool, err error)

	// Get returns userID's non-zero holdings keyed by asset id. Unknown
	// users get an empty map.
	Get(ctx context.Context, userID string) (map[string]int64, error)

	// Set overwrites userID's entry for assetID. Zero removes the entry.
	Set(ctx context.Context, userID, assetID string, units int64) error

	// MarkApplied records purchaseID as applied without changing any
	// entry, so a later Increment for it is a no-op. Repair uses it for
	// purchases whose units the ledger value it writes already includes.
	MarkApplied(ctx context.Context, purchaseID string) error
}

// Backend names accepted by configuration.
const (
	BackendRedis = "redis"
	BackendSQL   = "sql"
)

func validateIncrement(purchaseID, userID, assetID string, units int64) error {
	if purchaseID == "" || userID == "" || assetID == "" {
		return fmt.Errorf("%w: purchase, user and asset ids are required", ErrInvalidUnits)
	}
	if units <= 0 {
		return fmt.Errorf("%w: increment must be positive, got %d", ErrInvalidUnits, units)
	}
	return nil
}
