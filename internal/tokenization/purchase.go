package tokenization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/events"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/metrics"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Stage is a step of the purchase state machine.
type Stage string

// Purchase stages in order. A failure is reported as a *StageError
// carrying the last stage reached.
const (
	StageReceived        Stage = "received"
	StageLedgerLoaded    Stage = "ledger_loaded"
	StageAllocated       Stage = "allocated"
	StageLedgerPersisted Stage = "ledger_persisted"
	StageIndexPersisted  Stage = "index_persisted"
	StageComplete        Stage = "complete"
)

// StageError is a terminal purchase failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("purchase failed after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the last stage reached
func (e *StageError) FailedStage() string {
	return string(e.Stage)
}

// PurchaseRequest asks to move units of an asset to a buyer.
type PurchaseRequest struct {
	AssetID string
	BuyerID string
	Units   int64

	// Optional settlement references, recorded on the journal row only.
	SettlementTx  string
	WalletAddress string
}

// PurchaseResult describes an accepted purchase.
type PurchaseResult struct {
	PurchaseID     string                `json:"purchase_id"`
	AssetID        string                `json:"asset_id"`
	BuyerID        string                `json:"buyer_id"`
	UnitsRequested int64                 `json:"units_requested"`
	UnitsFilled    int64                 `json:"units_filled"`
	BuyerTotal     int64                 `json:"buyer_total"`
	Deductions     []ledger.Deduction    `json:"deductions"`
	Holders        []ledger.HolderRecord `json:"holders"`
	Stage          Stage                 `json:"stage"`
}

func validateSettlement(req PurchaseRequest) error {
	if req.SettlementTx != "" && !validation.IsTxHash(req.SettlementTx) {
		return fmt.Errorf("%w: settlement_tx must be a 32-byte 0x-prefixed hash", ledger.ErrInvalidRequest)
	}
	if req.WalletAddress != "" && !common.IsHexAddress(req.WalletAddress) {
		return fmt.Errorf("%w: wallet_address is not a valid address", ledger.ErrInvalidRequest)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, ledger.ErrPartialSuccess):
		return "partial_success"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ledger.ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "persistence_failure"
	}
}

// Purchase runs one purchase to completion.
//
// On success the result's Stage is StageComplete (or StageIndexPersisted
// if only the final journal update failed, which the reconciler finishes).
// A *ledger.PartialSuccessError is returned together with a non-nil result
// when the ledger committed but the holdings index did not.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	ctx, span := otel.Tracer("tokenization").Start(ctx, "Purchase",
		trace.WithAttributes(
			attribute.String("asset.id", req.AssetID),
			attribute.Int64("units.requested", req.Units)))
	defer span.End()

	start := time.Now()
	res, err := s.purchase(ctx, req)
	outcome := outcomeOf(err)
	metrics.PurchasesProcessed.WithLabelValues(outcome).Inc()
	metrics.PurchaseLatency.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("purchase.outcome", outcome))
	if err != nil && res == nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	fail := func(stage Stage, err error) (*PurchaseResult, error) {
		return nil, &StageError{Stage: stage, Err: err}
	}

	if req.AssetID == "" || req.BuyerID == "" {
		return fail(StageReceived, fmt.Errorf("%w: asset and buyer are required", ledger.ErrInvalidRequest))
	}
	if req.Units <= 0 {
		return fail(StageReceived, fmt.Errorf("%w: units must be positive, got %d", ledger.ErrInvalidRequest, req.Units))
	}
	if err := validateSettlement(req); err != nil {
		return fail(StageReceived, err)
	}
	assetUUID, err := uuid.Parse(req.AssetID)
	if err != nil {
		return fail(StageReceived, fmt.Errorf("%w: asset %q", ledger.ErrNotFound, req.AssetID))
	}

	unlock, err := s.locker.Lock(ctx, req.AssetID)
	if err != nil {
		return fail(StageReceived, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err))
	}
	defer unlock()

	var (
		next    *ledger.AssetLedger
		alloc   *ledger.Allocation
		journal *models.Purchase
	)
	for attempt := 1; ; attempt++ {
		snapshot, err := s.store.Load(ctx, req.AssetID)
		if err != nil {
			return fail(StageReceived, err)
		}

		if req.Units > snapshot.TotalSupply {
			return fail(StageLedgerLoaded, fmt.Errorf("%w: %d units requested, total supply is %d",
				ledger.ErrInvalidRequest, req.Units, snapshot.TotalSupply))
		}
		alloc, err = ledger.Allocate(snapshot, req.BuyerID, req.Units, s.config.Policy)
		if err != nil {
			return fail(StageLedgerLoaded, err)
		}
		next, err = snapshot.Apply(alloc.Holders)
		if err != nil {
			s.logger.Error("Allocation produced an invalid ledger",
				zap.String("asset_id", req.AssetID),
				zap.String("buyer_id", req.BuyerID),
				zap.Int64("units", req.Units),
				zap.Error(err))
			return fail(StageLedgerLoaded, err)
		}

		var before int64
		if h, ok := snapshot.Holder(req.BuyerID); ok {
			before = h.UnitsHeld
		}
		journal = &models.Purchase{
			ID:             uuid.New(),
			AssetID:        assetUUID,
			BuyerID:        req.BuyerID,
			UnitsRequested: alloc.Requested,
			UnitsFilled:    alloc.Filled,
			BuyerTotal:     alloc.BuyerTotal,
			IndexUnits:     alloc.BuyerTotal - before,
			SettlementTx:   req.SettlementTx,
			WalletAddress:  req.WalletAddress,
			Status:         models.PurchaseLedgerPersisted,
		}

		pctx, cancel := s.detached(ctx)
		err = s.store.Persist(pctx, next, journal)
		cancel()
		if err == nil {
			break
		}
		if !errors.Is(err, ledger.ErrConcurrentUpdate) || attempt >= s.config.MaxAttempts {
			s.logger.Error("Failed to persist ledger",
				zap.String("asset_id", req.AssetID),
				zap.String("buyer_id", req.BuyerID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return fail(StageAllocated, err)
		}

		s.logger.Debug("Ledger version moved, retrying purchase",
			zap.String("asset_id", req.AssetID),
			zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return fail(StageAllocated, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, ctx.Err()))
		case <-time.After(s.config.RetryBackoff * time.Duration(attempt)):
		}
	}
	unlock()
	metrics.UnitsTransferred.Add(float64(alloc.Filled))

	res := &PurchaseResult{
		PurchaseID:     journal.ID.String(),
		AssetID:        req.AssetID,
		BuyerID:        req.BuyerID,
		UnitsRequested: alloc.Requested,
		UnitsFilled:    alloc.Filled,
		BuyerTotal:     alloc.BuyerTotal,
		Deductions:     alloc.Deductions,
		Holders:        next.CurrentHolders(),
		Stage:          StageLedgerPersisted,
	}

	ictx, cancel := s.detached(ctx)
	defer cancel()

	if err := s.incrementIndex(ictx, journal); err != nil {
		s.logger.Error("Ledger committed but holdings index update failed",
			zap.String("purchase_id", res.PurchaseID),
			zap.String("asset_id", res.AssetID),
			zap.String("buyer_id", res.BuyerID),
			zap.Int64("units", journal.IndexUnits),
			zap.Error(err))
		s.notify(ictx, purchaseEvent(events.TypePurchasePartial, res))
		return res, &ledger.PartialSuccessError{
			PurchaseID: res.PurchaseID,
			AssetID:    res.AssetID,
			BuyerID:    res.BuyerID,
			Units:      journal.IndexUnits,
			LedgerOK:   true,
			IndexOK:    false,
			Err:        err,
		}
	}
	res.Stage = StageIndexPersisted

	if err := s.store.MarkPurchaseComplete(ictx, journal.ID); err != nil {
		s.logger.Warn("Failed to mark purchase complete",
			zap.String("purchase_id", res.PurchaseID),
			zap.Error(err))
	} else {
		res.Stage = StageComplete
	}

	s.logger.Info("Purchase completed",
		zap.String("purchase_id", res.PurchaseID),
		zap.String("asset_id", res.AssetID),
		zap.String("buyer_id", res.BuyerID),
		zap.Int64("requested", res.UnitsRequested),
		zap.Int64("filled", res.UnitsFilled),
		zap.Int64("buyer_total", res.BuyerTotal))
	s.notify(ictx, purchaseEvent(events.TypePurchaseCompleted, res))
	return res, nil
}

func (s *Service) incrementIndex(ctx context.Context, p *models.Purchase) error {
	// A purchase from oneself leaves the buyer's holding unchanged.
	if p.IndexUnits <= 0 {
		return nil
	}
	if _, err := s.index.Increment(ctx, p.ID.String(), p.BuyerID, p.AssetID.String(), p.IndexUnits); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
	}
	return nil
}

// completeIndexStep re-runs the index step of a journalled purchase and
// marks it complete. Safe to repeat.
func (s *Service) completeIndexStep(ctx context.Context, p *models.Purchase) error {
	if p.Status == models.PurchaseComplete {
		return nil
	}
	if err := s.incrementIndex(ctx, p); err != nil {
		return err
	}
	if err := s.store.MarkPurchaseComplete(ctx, p.ID); err != nil {
		return err
	}
	p.Status = models.PurchaseComplete
	return nil
}

// RetryIndex re-runs only the holdings index step of a purchase that
// ended in partial success. Completed purchases are returned unchanged.
func (s *Service) RetryIndex(ctx context.Context, purchaseID string) (*models.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if err := s.completeIndexStep(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Holdings index step retried",
		zap.String("purchase_id", purchaseID),
		zap.String("buyer_id", p.BuyerID))
	return p, nil
}

func purchaseEvent(eventType string, res *PurchaseResult) *events.LedgerEvent {
	deductions := make([]events.Deduction, len(res.Deductions))
	for i, d := range res.Deductions {
		deductions[i] = events.Deduction{HolderID: d.HolderID, Units: d.Units}
	}
	return &events.LedgerEvent{
		Type:        eventType,
		AssetID:     res.AssetID,
		UserID:      res.BuyerID,
		PurchaseID:  res.PurchaseID,
		Units:       res.UnitsRequested,
		UnitsFilled: res.UnitsFilled,
		BuyerTotal:  res.BuyerTotal,
		Status:      string(res.Stage),
		Deductions:  deductions,
	}
}
