// Package store persists asset ledgers, their holder lists and the purchase
// journal with gorm. Ledger writes are guarded by an optimistic version
// check on the asset row.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/dbutil"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/metrics"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed ledger store.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a ledger store
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the ledger tables
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.Asset{}, &models.TokenHolder{}, &models.Purchase{}); err != nil {
		return fmt.Errorf("failed to migrate ledger tables: %w", err)
	}
	return nil
}

func parseAssetID(assetID string) (uuid.UUID, error) {
	id, err := uuid.Parse(assetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: asset %q", ledger.ErrNotFound, assetID)
	}
	return id, nil
}

// persistenceErr classifies a storage error. Postgres serialization and
// unique-key conflicts surface as ErrConcurrentUpdate.
func persistenceErr(op string, err error) error {
	return dbutil.WrapError(op, err)
}

// CreateAsset stores the asset header and the issuer's holder row in one
// transaction. asset.ID must equal l.AssetID.
func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset, l *ledger.AssetLedger) error {
	if asset.ID.String() != l.AssetID {
		return fmt.Errorf("%w: asset id %s does not match ledger %s", ledger.ErrInvalidRequest, asset.ID, l.AssetID)
	}
	asset.TotalSupply = l.TotalSupply
	asset.Version = 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return fmt.Errorf("failed to create asset: %w", err)
		}
		rows := holderRows(asset.ID, l.CurrentHolders(), time.Now())
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to create holders: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrPersistenceFailure, err)
	}
	l.Version = asset.Version
	return nil
}

// Load reads the ledger of assetID with holders in stored position order.
func (s *Store) Load(ctx context.Context, assetID string) (*ledger.AssetLedger, error) {
	id, err := parseAssetID(assetID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var asset models.Asset
	if err := db.Select("id", "total_supply", "version").Where("id = ?", id).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: asset %s", ledger.ErrNotFound, assetID)
		}
		return nil, persistenceErr("load asset", err)
	}

	var rows []models.TokenHolder
	if err := db.Where("asset_id = ?", id).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, persistenceErr("load holders", err)
	}

	holders := make([]ledger.HolderRecord, len(rows))
	for i, r := range rows {
		holders[i] = ledger.HolderRecord{
			HolderID:              r.HolderID,
			UnitsHeld:             r.UnitsHeld,
			UnitsOfferedForResale: r.UnitsOfferedForResale,
		}
	}

	l, err := ledger.RestoreAssetLedger(assetID, asset.TotalSupply, asset.Version, holders)
	if err != nil {
		s.logger.Error("Stored ledger violates invariants",
			zap.String("asset_id", assetID),
			zap.Error(err))
		return nil, err
	}
	return l, nil
}

// Persist writes next as the new state of its asset, provided the stored
// version still equals next.Version. The purchase journal row, when given,
// is written in the same transaction. On success next.Version is advanced.
func (s *Store) Persist(ctx context.Context, next *ledger.AssetLedger, purchase *models.Purchase) error {
	id, err := parseAssetID(next.AssetID)
	if err != nil {
		return err
	}
	now := time.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Asset{}).
			Where("id = ? AND version = ?", id, next.Version).
			Updates(map[string]interface{}{
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return persistenceErr("bump ledger version", res.Error)
		}
		if res.RowsAffected == 0 {
			return ledger.ErrConcurrentUpdate
		}

		rows := holderRows(id, next.CurrentHolders(), now)
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}, {Name: "holder_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "units_held", "units_offered_for_resale", "updated_at"}),
		}).Create(&rows).Error
		if err != nil {
			return persistenceErr("write holders", err)
		}

		if purchase != nil {
			if err := tx.Create(purchase).Error; err != nil {
				return persistenceErr("write purchase journal", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrConcurrentUpdate) {
			metrics.OptimisticRetries.WithLabelValues("persist_ledger").Inc()
		}
		return err
	}

	next.Version++
	return nil
}

func holderRows(assetID uuid.UUID, holders []ledger.HolderRecord, now time.Time) []models.TokenHolder {
	rows := make([]models.TokenHolder, len(holders))
	for i, h := range holders {
		rows[i] = models.TokenHolder{
			AssetID:               assetID,
			HolderID:              h.HolderID,
			Position:              i,
			UnitsHeld:             h.UnitsHeld,
			UnitsOfferedForResale: h.UnitsOfferedForResale,
			UpdatedAt:             now,
		}
	}
	return rows
}

// GetPurchase reads a purchase journal row
func (s *Store) GetPurchase(ctx context.Context, purchaseID string) (*models.Purchase, error) {
	id, err := uuid.Parse(purchaseID)
	if err != nil {
		return nil, fmt.Errorf("%w: purchase %q", ledger.ErrNotFound, purchaseID)
	}
	return dbutil.FindOne[models.Purchase](s.db.WithContext(ctx).Where("id = ?", id), "purchase "+purchaseID)
}

// MarkPurchaseComplete moves a journal row to complete. Already complete
// rows are left as they are.
func (s *Store) MarkPurchaseComplete(ctx context.Context, purchaseID uuid.UUID) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status = ?", purchaseID, models.PurchaseLedgerPersisted).
		Updates(map[string]interface{}{
			"status":       models.PurchaseComplete,
			"completed_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		return persistenceErr("complete purchase", err)
	}
	return nil
}

// PendingPurchases lists purchases whose index step has not been confirmed
// and which were created before olderThan, oldest first.
func (s *Store) PendingPurchases(ctx context.Context, olderThan time.Time, limit int) ([]models.Purchase, error) {
	var out []models.Purchase
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.PurchaseLedgerPersisted, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, persistenceErr("list pending purchases", err)
	}
	return out, nil
}

// PendingPurchasesOf lists buyerID's purchases whose index step has not
// been confirmed, oldest first.
func (s *Store) PendingPurchasesOf(ctx context.Context, buyerID string) ([]models.Purchase, error) {
	var out []models.Purchase
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND status = ?", buyerID, models.PurchaseLedgerPersisted).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, persistenceErr("list pending purchases of buyer", err)
	}
	return out, nil
}

// StakesOf returns every holder row of holderID across all assets.
func (s *Store) StakesOf(ctx context.Context, holderID string) ([]models.TokenHolder, error) {
	var rows []models.TokenHolder
	if err := s.db.WithContext(ctx).Where("holder_id = ?", holderID).Order("asset_id ASC").Find(&rows).Error; err != nil {
		return nil, persistenceErr("list stakes", err)
	}
	return rows, nil
}
