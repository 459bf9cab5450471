package tokenization

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/events"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/metrics"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssueRequest describes a new tokenized asset
type IssueRequest struct {
	Name          string
	Location      string
	Price         int64
	PricePerToken int64
	ImageURL      string
	TotalSupply   int64
	IssuerID      string
}

// IssueAsset creates the asset header and its ledger, with the issuer
// holding and offering the whole supply. The issuer's holdings index entry
// is seeded on a best-effort basis; RepairHoldings fixes it if that fails.
func (s *Service) IssueAsset(ctx context.Context, req IssueRequest) (*models.Asset, *ledger.AssetLedger, error) {
	if req.Name == "" || req.Location == "" {
		return nil, nil, fmt.Errorf("%w: name and location are required", ledger.ErrInvalidRequest)
	}
	if req.Price < 0 || req.PricePerToken < 0 {
		return nil, nil, fmt.Errorf("%w: prices must not be negative", ledger.ErrInvalidRequest)
	}
	if req.IssuerID == "" {
		return nil, nil, fmt.Errorf("%w: issuer is required", ledger.ErrInvalidRequest)
	}

	id := uuid.New()
	l, err := ledger.NewAssetLedger(id.String(), req.IssuerID, req.TotalSupply)
	if err != nil {
		return nil, nil, err
	}
	asset := &models.Asset{
		ID:            id,
		Name:          req.Name,
		Location:      req.Location,
		Price:         req.Price,
		PricePerToken: req.PricePerToken,
		ImageURL:      req.ImageURL,
		IssuerID:      req.IssuerID,
	}
	if err := s.store.CreateAsset(ctx, asset, l); err != nil {
		return nil, nil, err
	}

	if err := s.index.Set(ctx, req.IssuerID, asset.ID.String(), req.TotalSupply); err != nil {
		s.logger.Warn("Failed to seed issuer holdings",
			zap.String("asset_id", asset.ID.String()),
			zap.String("issuer_id", req.IssuerID),
			zap.Error(err))
	}

	s.logger.Info("Asset issued",
		zap.String("asset_id", asset.ID.String()),
		zap.String("issuer_id", req.IssuerID),
		zap.Int64("total_supply", req.TotalSupply))
	s.notify(ctx, &events.LedgerEvent{
		Type:    events.TypeAssetIssued,
		AssetID: asset.ID.String(),
		UserID:  req.IssuerID,
		Units:   req.TotalSupply,
	})
	return asset, l, nil
}

// Ledger returns the current ledger of an asset
func (s *Service) Ledger(ctx context.Context, assetID string) (*ledger.AssetLedger, error) {
	return s.store.Load(ctx, assetID)
}

// ListForResale sets how many of holderID's units are offered for resale.
// It runs under the same asset lock and version check as a purchase.
func (s *Service) ListForResale(ctx context.Context, assetID, holderID string, units int64) (*ledger.AssetLedger, error) {
	unlock, err := s.locker.Lock(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		snapshot, err := s.store.Load(ctx, assetID)
		if err != nil {
			return nil, err
		}
		holders, err := snapshot.ListForResale(holderID, units)
		if err != nil {
			return nil, err
		}
		next, err := snapshot.Apply(holders)
		if err != nil {
			return nil, err
		}

		pctx, cancel := s.detached(ctx)
		err = s.store.Persist(pctx, next, nil)
		cancel()
		if err == nil {
			s.notify(ctx, &events.LedgerEvent{
				Type:    events.TypeResaleListed,
				AssetID: assetID,
				UserID:  holderID,
				Units:   units,
			})
			return next, nil
		}
		if !errors.Is(err, ledger.ErrConcurrentUpdate) || attempt >= s.config.MaxAttempts {
			return nil, err
		}
		time.Sleep(s.config.RetryBackoff * time.Duration(attempt))
	}
}

// Portfolio returns a user's holdings index entries
func (s *Service) Portfolio(ctx context.Context, userID string) (map[string]int64, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ledger.ErrInvalidRequest)
	}
	out, err := s.index.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
	}
	return out, nil
}

// RepairHoldings overwrites userID's holdings index with the units found in
// the asset ledgers. Entries for assets where the user holds nothing are
// removed. The user's purchases still waiting for their index step are
// settled first: the ledger already counts them, so their purchase ids are
// marked applied in the index and the journal rows completed. A purchase
// that commits after that point and before the ledger read may still be
// counted twice; running the repair again corrects it.
func (s *Service) RepairHoldings(ctx context.Context, userID string) (map[string]int64, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ledger.ErrInvalidRequest)
	}

	pending, err := s.store.PendingPurchasesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		p := &pending[i]
		if err := s.index.MarkApplied(ctx, p.ID.String()); err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
		}
		if err := s.store.MarkPurchaseComplete(ctx, p.ID); err != nil {
			return nil, err
		}
		metrics.PendingIndexRetries.WithLabelValues("repaired").Inc()
	}

	stakes, err := s.store.StakesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, err := s.index.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
	}

	truth := make(map[string]int64, len(stakes))
	for _, st := range stakes {
		if st.UnitsHeld > 0 {
			truth[st.AssetID.String()] = st.UnitsHeld
		}
	}

	changed := 0
	for assetID, units := range truth {
		if current[assetID] == units {
			continue
		}
		if err := s.index.Set(ctx, userID, assetID, units); err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
		}
		changed++
	}
	for assetID := range current {
		if _, ok := truth[assetID]; ok {
			continue
		}
		if err := s.index.Set(ctx, userID, assetID, 0); err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
		}
		changed++
	}

	if changed > 0 {
		s.logger.Info("Holdings repaired from ledger",
			zap.String("user_id", userID),
			zap.Int("entries_changed", changed))
		s.notify(ctx, &events.LedgerEvent{
			Type:     events.TypeHoldingsRepaired,
			UserID:   userID,
			Metadata: map[string]string{"entries_changed": strconv.Itoa(changed)},
		})
	}
	return truth, nil
}
