package handlers

import (
	"context"
	"sort"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api/responses"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/apiutil"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/auth"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PortfolioEntry is one asset in a user's portfolio
type PortfolioEntry struct {
	AssetID string           `json:"asset_id"`
	Units   int64            `json:"units"`
	Asset   *catalog.Summary `json:"asset,omitempty"`
}

// Portfolio handles GET /portfolio
func (h *Handler) Portfolio(c *gin.Context) {
	held, err := h.ledger.Portfolio(c.Request.Context(), auth.UserID(c))
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, h.entries(c.Request.Context(), held))
}

// RepairPortfolio handles POST /portfolio/repair. Admins may repair
// another user with ?user_id=.
func (h *Handler) RepairPortfolio(c *gin.Context) {
	userID := auth.UserID(c)
	if other := c.Query("user_id"); other != "" && other != userID {
		if c.GetString(auth.ContextRole) != auth.RoleAdmin {
			apiutil.RFC7807ForbiddenResponse(c, "admin role required")
			return
		}
		userID = other
	}

	held, err := h.ledger.RepairHoldings(c.Request.Context(), userID)
	if err != nil {
		responses.Error(c, err)
		return
	}
	h.logger.Info("Holdings repaired",
		zap.String("user_id", userID),
		zap.String("requested_by", auth.UserID(c)),
		zap.Int("assets", len(held)))
	responses.Success(c, h.entries(c.Request.Context(), held))
}

// entries orders holdings by asset id and attaches catalog summaries.
// A catalog failure only drops the summaries.
func (h *Handler) entries(ctx context.Context, held map[string]int64) []PortfolioEntry {
	ids := make([]string, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summaries, err := h.catalog.Summaries(ctx, ids)
	if err != nil {
		h.logger.Warn("Failed to load portfolio summaries", zap.Error(err))
	}

	out := make([]PortfolioEntry, 0, len(ids))
	for _, id := range ids {
		e := PortfolioEntry{AssetID: id, Units: held[id]}
		if s, ok := summaries[id]; ok {
			e.Asset = &s
		}
		out = append(out, e)
	}
	return out
}
