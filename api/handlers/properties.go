package handlers

import (
	"strconv"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api/responses"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/auth"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/catalog"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/tokenization"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreatePropertyRequest issues a new tokenized property
type CreatePropertyRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	Location      string `json:"location" binding:"required,max=300"`
	Price         int64  `json:"price" binding:"gte=0"`
	PricePerToken int64  `json:"price_per_token" binding:"gte=0"`
	ImageURL      string `json:"image_url" binding:"omitempty,url"`
	TotalSupply   int64  `json:"total_supply" binding:"required,gt=0"`
	// IssuerID defaults to the calling admin
	IssuerID string `json:"issuer_id" binding:"omitempty,max=64"`
}

// UpdatePropertyRequest edits catalog metadata only
type UpdatePropertyRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=200"`
	Location *string `json:"location" binding:"omitempty,max=300"`
}

type propertyCreated struct {
	Asset   *models.Asset         `json:"asset"`
	Holders []ledger.HolderRecord `json:"holders"`
}

// ListProperties handles GET /properties
func (h *Handler) ListProperties(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	assets, total, err := h.catalog.List(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Paginated(c, assets, responses.CreatePaginationMeta(page, perPage, total))
}

// GetProperty handles GET /properties/:id
func (h *Handler) GetProperty(c *gin.Context) {
	view, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, view)
}

// CreateProperty handles POST /properties
func (h *Handler) CreateProperty(c *gin.Context) {
	var req CreatePropertyRequest
	if !h.bind(c, &req) {
		return
	}
	name, location, err := h.catalog.NormalizeText(req.Name, req.Location)
	if err != nil {
		responses.Error(c, err)
		return
	}
	issuer := req.IssuerID
	if issuer == "" {
		issuer = auth.UserID(c)
	}

	asset, l, err := h.ledger.IssueAsset(c.Request.Context(), tokenization.IssueRequest{
		Name:          name,
		Location:      location,
		Price:         req.Price,
		PricePerToken: req.PricePerToken,
		ImageURL:      req.ImageURL,
		TotalSupply:   req.TotalSupply,
		IssuerID:      issuer,
	})
	if err != nil {
		responses.Error(c, err)
		return
	}
	h.logger.Info("Property issued",
		zap.String("asset_id", asset.ID.String()),
		zap.String("issuer_id", issuer),
		zap.String("admin_id", auth.UserID(c)))
	responses.Created(c, propertyCreated{Asset: asset, Holders: l.CurrentHolders()})
}

// UpdateProperty handles PATCH /properties/:id
func (h *Handler) UpdateProperty(c *gin.Context) {
	var req UpdatePropertyRequest
	if !h.bind(c, &req) {
		return
	}
	asset, err := h.catalog.UpdateMetadata(c.Request.Context(), c.Param("id"), catalog.MetadataUpdate{
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, asset)
}
