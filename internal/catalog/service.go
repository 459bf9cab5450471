// Package catalog serves the descriptive side of tokenized assets: name,
// location, pricing and image. It never writes ledger state.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/dbutil"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Field limits match the column sizes in models.Asset.
const (
	MaxNameLength     = 200
	MaxLocationLength = 300
)

// LedgerReader loads an asset's holder list
type LedgerReader interface {
	Load(ctx context.Context, assetID string) (*ledger.AssetLedger, error)
}

// AssetView is an asset with its current ledger
type AssetView struct {
	models.Asset
	AvailableToSell int64                 `json:"available_to_sell"`
	Holders         []ledger.HolderRecord `json:"holders"`
}

// Summary is the short form shown next to portfolio entries
type Summary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	PricePerToken int64  `json:"price_per_token"`
	TotalSupply   int64  `json:"total_supply"`
	ImageURL      string `json:"image_url,omitempty"`
}

// MetadataUpdate carries optional new values; nil fields are left alone
type MetadataUpdate struct {
	Name     *string
	Location *string
}

// Service reads and edits asset headers
type Service struct {
	db        *gorm.DB
	ledgers   LedgerReader
	validator *validation.Validator
	logger    *zap.Logger
}

// NewService creates a catalog service
func NewService(db *gorm.DB, ledgers LedgerReader, v *validation.Validator, logger *zap.Logger) *Service {
	return &Service{db: db, ledgers: ledgers, validator: v, logger: logger}
}

// NormalizeText validates and sanitizes a name and location pair
func (s *Service) NormalizeText(name, location string) (string, string, error) {
	n, err := s.validator.ValidateText(name, "name", MaxNameLength)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ledger.ErrInvalidRequest, err)
	}
	l, err := s.validator.ValidateText(location, "location", MaxLocationLength)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ledger.ErrInvalidRequest, err)
	}
	return n, l, nil
}

// List returns assets newest first together with the total count
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Asset, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	db := s.db.WithContext(ctx).Model(&models.Asset{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count assets: %v", ledger.ErrPersistenceFailure, err)
	}

	var assets []models.Asset
	if err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&assets).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list assets: %v", ledger.ErrPersistenceFailure, err)
	}
	return assets, total, nil
}

func (s *Service) find(ctx context.Context, assetID string) (*models.Asset, error) {
	id, err := uuid.Parse(assetID)
	if err != nil {
		return nil, fmt.Errorf("%w: asset %q", ledger.ErrNotFound, assetID)
	}
	return dbutil.FindOne[models.Asset](s.db.WithContext(ctx).Where("id = ?", id), "asset "+assetID)
}

// Get returns an asset with its holder list
func (s *Service) Get(ctx context.Context, assetID string) (*AssetView, error) {
	asset, err := s.find(ctx, assetID)
	if err != nil {
		return nil, err
	}
	l, err := s.ledgers.Load(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return &AssetView{
		Asset:           *asset,
		AvailableToSell: l.AvailableToSell(),
		Holders:         l.CurrentHolders(),
	}, nil
}

// UpdateMetadata edits name and location. Supply, holders and version are
// never touched.
func (s *Service) UpdateMetadata(ctx context.Context, assetID string, upd MetadataUpdate) (*models.Asset, error) {
	asset, err := s.find(ctx, assetID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if upd.Name != nil {
		name, err := s.validator.ValidateText(*upd.Name, "name", MaxNameLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidRequest, err)
		}
		changes["name"] = name
	}
	if upd.Location != nil {
		location, err := s.validator.ValidateText(*upd.Location, "location", MaxLocationLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidRequest, err)
		}
		changes["location"] = location
	}
	if len(changes) == 0 {
		return asset, nil
	}
	changes["updated_at"] = time.Now()

	if err := s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", asset.ID).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to update asset: %v", ledger.ErrPersistenceFailure, err)
	}
	s.logger.Info("Asset metadata updated",
		zap.String("asset_id", assetID),
		zap.Int("fields", len(changes)-1))
	return s.find(ctx, assetID)
}

// Summaries resolves asset ids to summaries. Unknown or malformed ids are
// skipped.
func (s *Service) Summaries(ctx context.Context, assetIDs []string) (map[string]Summary, error) {
	ids := make([]uuid.UUID, 0, len(assetIDs))
	for _, raw := range assetIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	out := make(map[string]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var assets []models.Asset
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load assets: %v", ledger.ErrPersistenceFailure, err)
	}
	for _, a := range assets {
		out[a.ID.String()] = Summary{
			ID:            a.ID.String(),
			Name:          a.Name,
			Location:      a.Location,
			PricePerToken: a.PricePerToken,
			TotalSupply:   a.TotalSupply,
			ImageURL:      a.ImageURL,
		}
	}
	return out, nil
}
