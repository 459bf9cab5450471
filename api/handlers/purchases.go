package handlers

import (
	"errors"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api/responses"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/auth"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/tokenization"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PurchaseRequest buys units of a property for the caller
type PurchaseRequest struct {
	Units         int64  `json:"units" binding:"required,gt=0"`
	SettlementTx  string `json:"settlement_tx" binding:"omitempty,tx_hash"`
	WalletAddress string `json:"wallet_address" binding:"omitempty,eth_address"`
}

// ResaleRequest sets how many of the caller's units are offered
type ResaleRequest struct {
	Units *int64 `json:"units" binding:"required,gte=0"`
}

// Purchase handles POST /properties/:id/purchase. A purchase whose ledger
// committed but whose holdings index did not is answered with 202.
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.ledger.Purchase(c.Request.Context(), tokenization.PurchaseRequest{
		AssetID:       c.Param("id"),
		BuyerID:       auth.UserID(c),
		Units:         req.Units,
		SettlementTx:  req.SettlementTx,
		WalletAddress: req.WalletAddress,
	})
	var partial *ledger.PartialSuccessError
	switch {
	case err == nil:
		responses.Success(c, res, "Purchase complete")
	case errors.As(err, &partial) && res != nil:
		h.logger.Warn("Purchase committed without holdings index update",
			zap.String("purchase_id", partial.PurchaseID),
			zap.Error(partial.Err))
		responses.Accepted(c, res, "Purchase committed; portfolio update pending")
	default:
		responses.Error(c, err)
	}
}

// ListForResale handles POST /properties/:id/resale
func (h *Handler) ListForResale(c *gin.Context) {
	var req ResaleRequest
	if !h.bind(c, &req) {
		return
	}
	l, err := h.ledger.ListForResale(c.Request.Context(), c.Param("id"), auth.UserID(c), *req.Units)
	if err != nil {
		responses.Error(c, err)
		return
	}
	holder, _ := l.Holder(auth.UserID(c))
	responses.Success(c, holder)
}

// RetryIndex handles POST /purchases/:id/retry-index
func (h *Handler) RetryIndex(c *gin.Context) {
	p, err := h.ledger.RetryIndex(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, p)
}
