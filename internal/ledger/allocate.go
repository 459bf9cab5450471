package ledger

import (
	"fmt"
	"strings"
)

// CreditMode decides what happens to the resale offer of purchased units.
type CreditMode string

const (
	// CreditAutoList offers every purchased unit for resale immediately.
	CreditAutoList CreditMode = "auto_list"
	// CreditExplicit does not offer purchased units; they must be listed
	// with ListForResale. Units bought back from the buyer's own offer
	// stay offered.
	CreditExplicit CreditMode = "explicit"
)

// UndersupplyPolicy decides what happens when fewer units are offered than
// requested.
type UndersupplyPolicy string

const (
	// UndersupplyReject fails the purchase with ErrInsufficientSupply.
	UndersupplyReject UndersupplyPolicy = "reject"
	// UndersupplyPartialFill deducts what is offered and credits the buyer
	// with exactly that amount.
	UndersupplyPartialFill UndersupplyPolicy = "partial_fill"
)

// ParseCreditMode parses a config value; empty means CreditAutoList.
func ParseCreditMode(s string) (CreditMode, error) {
	switch CreditMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CreditAutoList:
		return CreditAutoList, nil
	case CreditExplicit:
		return CreditExplicit, nil
	}
	return "", fmt.Errorf("unknown credit mode %q", s)
}

// ParseUndersupplyPolicy parses a config value; empty means UndersupplyReject.
func ParseUndersupplyPolicy(s string) (UndersupplyPolicy, error) {
	switch UndersupplyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UndersupplyReject:
		return UndersupplyReject, nil
	case UndersupplyPartialFill:
		return UndersupplyPartialFill, nil
	}
	return "", fmt.Errorf("unknown undersupply policy %q", s)
}

// Policy bundles the allocation knobs.
type Policy struct {
	Credit      CreditMode
	Undersupply UndersupplyPolicy
}

// DefaultPolicy keeps the resale behaviour of existing clients and refuses
// to oversell.
func DefaultPolicy() Policy {
	return Policy{Credit: CreditAutoList, Undersupply: UndersupplyReject}
}

// Deduction records units taken from one seller.
type Deduction struct {
	HolderID string `json:"holder_id"`
	Units    int64  `json:"units"`
}

// Allocation is the outcome of one purchase against a ledger snapshot.
type Allocation struct {
	Holders    []HolderRecord
	Deductions []Deduction
	Requested  int64
	Filled     int64
	// BuyerTotal is the buyer's unitsHeld after the purchase.
	BuyerTotal int64
}

// Allocate computes the holder list that results from buyerID purchasing
// unitsRequested units. Sellers are drained greedily in ledger order: the
// first holder with units on offer gives as many as it can, then the next,
// and so on. There is no pro-rata split and no price priority.
//
// The snapshot is not modified.
func Allocate(snapshot *AssetLedger, buyerID string, unitsRequested int64, policy Policy) (*Allocation, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil ledger snapshot", ErrNotFound)
	}
	if buyerID == "" {
		return nil, fmt.Errorf("%w: empty buyer id", ErrInvalidRequest)
	}
	if unitsRequested <= 0 {
		return nil, fmt.Errorf("%w: units requested must be positive, got %d", ErrInvalidRequest, unitsRequested)
	}

	available := snapshot.AvailableToSell()
	toFill := unitsRequested
	if available < unitsRequested {
		if policy.Undersupply != UndersupplyPartialFill {
			return nil, fmt.Errorf("%w: asset %s offers %d units, %d requested",
				ErrInsufficientSupply, snapshot.AssetID, available, unitsRequested)
		}
		if available == 0 {
			return nil, fmt.Errorf("%w: asset %s has no units offered", ErrInsufficientSupply, snapshot.AssetID)
		}
		toFill = available
	}

	holders := snapshot.CurrentHolders()
	var deductions []Deduction
	remaining := toFill
	for i := range holders {
		if remaining == 0 {
			break
		}
		offered := holders[i].UnitsOfferedForResale
		if offered <= 0 {
			continue
		}
		d := min(offered, remaining)
		holders[i].UnitsOfferedForResale -= d
		holders[i].UnitsHeld -= d
		remaining -= d
		deductions = append(deductions, Deduction{HolderID: holders[i].HolderID, Units: d})
	}
	filled := toFill - remaining

	buyerIdx := -1
	for i := range holders {
		if holders[i].HolderID == buyerID {
			buyerIdx = i
			break
		}
	}
	if buyerIdx < 0 {
		holders = append(holders, HolderRecord{HolderID: buyerID})
		buyerIdx = len(holders) - 1
	}
	holders[buyerIdx].UnitsHeld += filled
	if policy.Credit != CreditExplicit {
		holders[buyerIdx].UnitsOfferedForResale += filled
	} else {
		// Units the buyer took off its own offer go back on it.
		for _, d := range deductions {
			if d.HolderID == buyerID {
				holders[buyerIdx].UnitsOfferedForResale += d.Units
			}
		}
	}

	return &Allocation{
		Holders:    holders,
		Deductions: deductions,
		Requested:  unitsRequested,
		Filled:     filled,
		BuyerTotal: holders[buyerIdx].UnitsHeld,
	}, nil
}
