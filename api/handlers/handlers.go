// Package handlers contains the HTTP handlers for assets, purchases,
// portfolios and quotes.
package handlers

import (
	"context"
	"errors"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/catalog"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/quotes"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/tokenization"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ledger is the tokenization service as seen by the API
type Ledger interface {
	IssueAsset(ctx context.Context, req tokenization.IssueRequest) (*models.Asset, *ledger.AssetLedger, error)
	Purchase(ctx context.Context, req tokenization.PurchaseRequest) (*tokenization.PurchaseResult, error)
	ListForResale(ctx context.Context, assetID, holderID string, units int64) (*ledger.AssetLedger, error)
	Portfolio(ctx context.Context, userID string) (map[string]int64, error)
	RepairHoldings(ctx context.Context, userID string) (map[string]int64, error)
	RetryIndex(ctx context.Context, purchaseID string) (*models.Purchase, error)
}

// Catalog is the asset catalog as seen by the API
type Catalog interface {
	NormalizeText(name, location string) (string, string, error)
	List(ctx context.Context, limit, offset int) ([]models.Asset, int64, error)
	Get(ctx context.Context, assetID string) (*catalog.AssetView, error)
	UpdateMetadata(ctx context.Context, assetID string, upd catalog.MetadataUpdate) (*models.Asset, error)
	Summaries(ctx context.Context, assetIDs []string) (map[string]catalog.Summary, error)
}

// Quotes serves the ETH/INR rate
type Quotes interface {
	EthInr(ctx context.Context) (*quotes.Quote, error)
}

// Handler holds the services behind the HTTP API
type Handler struct {
	ledger    Ledger
	catalog   Catalog
	quotes    Quotes
	validator *validation.Validator
	logger    *zap.Logger
}

// New creates the handler set
func New(l Ledger, c Catalog, q Quotes, v *validation.Validator, logger *zap.Logger) *Handler {
	return &Handler{ledger: l, catalog: c, quotes: q, validator: v, logger: logger}
}

// bind decodes the JSON body into req. Failures are attached to the
// context for the problem details middleware and bind returns false.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	err = h.validator.Translate(err)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		_ = c.Error(err).SetType(gin.ErrorTypePublic)
	} else {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
	}
	return false
}
