package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/metrics"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLIndex keeps holdings in the holdings table, with applied purchase ids
// in holding_applied_purchases.
type SQLIndex struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLIndex creates a gorm-backed index
func NewSQLIndex(db *gorm.DB, logger *zap.Logger) *SQLIndex {
	return &SQLIndex{db: db, logger: logger}
}

// Migrate creates or updates the index tables
func (s *SQLIndex) Migrate() error {
	if err := s.db.AutoMigrate(&models.Holding{}, &models.AppliedPurchase{}); err != nil {
		return fmt.Errorf("failed to migrate holdings tables: %w", err)
	}
	return nil
}

func (s *SQLIndex) Increment(ctx context.Context, purchaseID, userID, assetID string, units int64) (bool, error) {
	if err := validateIncrement(purchaseID, userID, assetID, units); err != nil {
		return false, err
	}

	applied := false
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.AppliedPurchase{PurchaseID: purchaseID, CreatedAt: now})
		if res.Error != nil {
			return fmt.Errorf("failed to record applied purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		row := models.Holding{UserID: userID, AssetID: assetID, UnitsHeld: units, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "asset_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"units_held": gorm.Expr("holdings.units_held + ?", units),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert holding: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		metrics.IndexWrites.WithLabelValues("increment", "error").Inc()
		return false, fmt.Errorf("failed to increment holdings: %w", err)
	}

	if !applied {
		metrics.IndexWrites.WithLabelValues("increment", "duplicate").Inc()
		s.logger.Debug("Holdings increment already applied",
			zap.String("purchase_id", purchaseID),
			zap.String("user_id", userID))
		return false, nil
	}
	metrics.IndexWrites.WithLabelValues("increment", "success").Inc()
	return true, nil
}

func (s *SQLIndex) Get(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []models.Holding
	if err := s.db.WithContext(ctx).Where("user_id = ? AND units_held <> 0", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.AssetID] = r.UnitsHeld
	}
	return out, nil
}

func (s *SQLIndex) Set(ctx context.Context, userID, assetID string, units int64) error {
	if units < 0 {
		return fmt.Errorf("%w: cannot set %d units", ErrInvalidUnits, units)
	}

	db := s.db.WithContext(ctx)
	var err error
	if units == 0 {
		err = db.Where("user_id = ? AND asset_id = ?", userID, assetID).Delete(&models.Holding{}).Error
	} else {
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "asset_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"units_held", "updated_at"}),
		}).Create(&models.Holding{UserID: userID, AssetID: assetID, UnitsHeld: units, UpdatedAt: time.Now()}).Error
	}
	if err != nil {
		metrics.IndexWrites.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("failed to set holdings: %w", err)
	}
	metrics.IndexWrites.WithLabelValues("set", "success").Inc()
	return nil
}

func (s *SQLIndex) MarkApplied(ctx context.Context, purchaseID string) error {
	if purchaseID == "" {
		return fmt.Errorf("%w: purchase id is required", ErrInvalidUnits)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.AppliedPurchase{PurchaseID: purchaseID, CreatedAt: time.Now()}).Error
	if err != nil {
		metrics.IndexWrites.WithLabelValues("mark", "error").Inc()
		return fmt.Errorf("failed to mark purchase applied: %w", err)
	}
	metrics.IndexWrites.WithLabelValues("mark", "success").Inc()
	return nil
}
