// Package ledger holds the fractional-ownership model of one asset and the
// allocation engine that moves units from willing sellers to a buyer.
//
// Everything here is pure: no I/O, no clocks, no randomness. Persistence
// lives in the store subpackage and orchestration in internal/tokenization.
package ledger

import "fmt"

// HolderRecord is one participant's stake in one asset.
type HolderRecord struct {
	HolderID              string `json:"holder_id"`
	UnitsHeld             int64  `json:"units_held"`
	UnitsOfferedForResale int64  `json:"units_offered_for_resale"`
}

// Validate checks the per-record invariants.
func (h HolderRecord) Validate() error {
	if h.HolderID == "" {
		return fmt.Errorf("%w: empty holder id", ErrInvariantViolation)
	}
	if h.UnitsHeld < 0 || h.UnitsOfferedForResale < 0 {
		return fmt.Errorf("%w: holder %s has negative units (held=%d offered=%d)",
			ErrInvariantViolation, h.HolderID, h.UnitsHeld, h.UnitsOfferedForResale)
	}
	if h.UnitsOfferedForResale > h.UnitsHeld {
		return fmt.Errorf("%w: holder %s offers %d of %d held units",
			ErrInvariantViolation, h.HolderID, h.UnitsOfferedForResale, h.UnitsHeld)
	}
	return nil
}

// AssetLedger is the ordered holder list of one asset.
//
// Holder order is insertion order with the issuer first. It is the
// deduction priority used by Allocate, so stores must persist it
// explicitly rather than rely on row order.
type AssetLedger struct {
	AssetID     string
	TotalSupply int64
	// Version is the optimistic concurrency token of the stored ledger.
	Version int64
	holders []HolderRecord
}

// NewAssetLedger creates the ledger of a freshly issued asset: a single
// issuer record holding and offering the full supply.
func NewAssetLedger(assetID, issuerID string, totalSupply int64) (*AssetLedger, error) {
	if assetID == "" {
		return nil, fmt.Errorf("%w: empty asset id", ErrInvalidRequest)
	}
	if totalSupply <= 0 {
		return nil, fmt.Errorf("%w: total supply must be positive, got %d", ErrInvalidRequest, totalSupply)
	}
	issuer := HolderRecord{HolderID: issuerID, UnitsHeld: totalSupply, UnitsOfferedForResale: totalSupply}
	if err := issuer.Validate(); err != nil {
		return nil, err
	}
	return &AssetLedger{
		AssetID:     assetID,
		TotalSupply: totalSupply,
		holders:     []HolderRecord{issuer},
	}, nil
}

// RestoreAssetLedger rebuilds a ledger from stored state, checking every
// invariant on the way in.
func RestoreAssetLedger(assetID string, totalSupply, version int64, holders []HolderRecord) (*AssetLedger, error) {
	l := &AssetLedger{AssetID: assetID, TotalSupply: totalSupply, Version: version}
	return l.Apply(holders)
}

// CurrentHolders returns a copy of the holder list in ledger order.
func (l *AssetLedger) CurrentHolders() []HolderRecord {
	out := make([]HolderRecord, len(l.holders))
	copy(out, l.holders)
	return out
}

// Holder returns the record of holderID, if any.
func (l *AssetLedger) Holder(holderID string) (HolderRecord, bool) {
	for _, h := range l.holders {
		if h.HolderID == holderID {
			return h, true
		}
	}
	return HolderRecord{}, false
}

// AvailableToSell is the sum of units offered for resale.
func (l *AssetLedger) AvailableToSell() int64 {
	var total int64
	for _, h := range l.holders {
		total += h.UnitsOfferedForResale
	}
	return total
}

// Apply returns a new ledger with the holder list replaced wholesale. The
// receiver is left untouched. It fails with ErrInvariantViolation unless
// the new list sums to TotalSupply, has no negative values, no offer above
// its holding and no duplicate holder.
func (l *AssetLedger) Apply(newHolders []HolderRecord) (*AssetLedger, error) {
	seen := make(map[string]struct{}, len(newHolders))
	var sum int64
	for _, h := range newHolders {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[h.HolderID]; dup {
			return nil, fmt.Errorf("%w: duplicate holder %s", ErrInvariantViolation, h.HolderID)
		}
		seen[h.HolderID] = struct{}{}
		sum += h.UnitsHeld
	}
	if sum != l.TotalSupply {
		return nil, fmt.Errorf("%w: asset %s holders sum to %d, total supply is %d",
			ErrInvariantViolation, l.AssetID, sum, l.TotalSupply)
	}

	holders := make([]HolderRecord, len(newHolders))
	copy(holders, newHolders)
	return &AssetLedger{
		AssetID:     l.AssetID,
		TotalSupply: l.TotalSupply,
		Version:     l.Version,
		holders:     holders,
	}, nil
}

// ListForResale returns the holder list with holderID offering exactly
// units. The result still has to go through Apply.
func (l *AssetLedger) ListForResale(holderID string, units int64) ([]HolderRecord, error) {
	if units < 0 {
		return nil, fmt.Errorf("%w: cannot offer %d units", ErrInvalidRequest, units)
	}
	holders := l.CurrentHolders()
	for i := range holders {
		if holders[i].HolderID != holderID {
			continue
		}
		if units > holders[i].UnitsHeld {
			return nil, fmt.Errorf("%w: holder %s holds %d units, cannot offer %d",
				ErrInvalidRequest, holderID, holders[i].UnitsHeld, units)
		}
		holders[i].UnitsOfferedForResale = units
		return holders, nil
	}
	return nil, fmt.Errorf("%w: holder %s has no stake in asset %s", ErrNotFound, holderID, l.AssetID)
}
