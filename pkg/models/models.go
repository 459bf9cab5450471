package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset is the catalog header of a tokenized property plus the ledger's
// fixed supply and optimistic concurrency version.
type Asset struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name          string    `json:"name" gorm:"type:varchar(200);not null"`
	Location      string    `json:"location" gorm:"type:varchar(300);not null"`
	Price         int64     `json:"price" gorm:"not null"`
	PricePerToken int64     `json:"price_per_token" gorm:"not null"`
	ImageURL      string    `json:"image_url,omitempty" gorm:"type:text"`
	TotalSupply   int64     `json:"total_supply" gorm:"not null"`
	IssuerID      string    `json:"issuer_id" gorm:"type:varchar(64);not null;index"`
	Version       int64     `json:"version" gorm:"default:1;not null"` // Optimistic concurrency control
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the table name
func (Asset) TableName() string {
	return "assets"
}

// TokenHolder is one row of an asset's holder list. Position is the
// deduction priority: 0 is the issuer, later buyers get increasing values.
type TokenHolder struct {
	AssetID               uuid.UUID `json:"asset_id" gorm:"type:uuid;primaryKey"`
	HolderID              string    `json:"holder_id" gorm:"type:varchar(64);primaryKey;index:idx_token_holder_holder"`
	Position              int       `json:"position" gorm:"not null"`
	UnitsHeld             int64     `json:"units_held" gorm:"not null"`
	UnitsOfferedForResale int64     `json:"units_offered_for_resale" gorm:"not null;default:0"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// TableName returns the table name
func (TokenHolder) TableName() string {
	return "token_holders"
}

// Purchase statuses
const (
	PurchaseLedgerPersisted = "ledger_persisted"
	PurchaseComplete        = "complete"
)

// Purchase is the journal row written together with the ledger update.
type Purchase struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	AssetID        uuid.UUID  `json:"asset_id" gorm:"type:uuid;not null;index"`
	BuyerID        string     `json:"buyer_id" gorm:"type:varchar(64);not null;index"`
	UnitsRequested int64      `json:"units_requested" gorm:"not null"`
	UnitsFilled    int64      `json:"units_filled" gorm:"not null"`
	BuyerTotal     int64      `json:"buyer_total" gorm:"not null"`
	IndexUnits     int64      `json:"index_units" gorm:"not null"` // Net change to the buyer's holdings entry
	SettlementTx   string     `json:"settlement_tx,omitempty" gorm:"type:varchar(66)"`
	WalletAddress  string     `json:"wallet_address,omitempty" gorm:"type:varchar(42)"`
	Status         string     `json:"status" gorm:"type:varchar(20);not null;index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the table name
func (Purchase) TableName() string {
	return "purchases"
}

// Holding is a User Holdings Index entry for the SQL backend.
type Holding struct {
	UserID    string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	AssetID   string    `json:"asset_id" gorm:"type:varchar(64);primaryKey"`
	UnitsHeld int64     `json:"units_held" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name
func (Holding) TableName() string {
	return "holdings"
}

// AppliedPurchase marks a purchase already credited to the holdings index.
type AppliedPurchase struct {
	PurchaseID string    `gorm:"type:varchar(64);primaryKey"`
	CreatedAt  time.Time
}

// TableName returns the table name
func (AppliedPurchase) TableName() string {
	return "holding_applied_purchases"
}
