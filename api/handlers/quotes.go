package handlers

import (
	"errors"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api/responses"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/apiutil"
	problems "github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/errors"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/quotes"
	"github.com/gin-gonic/gin"
)

// EthInr handles GET /ethrate/eth-inr
func (h *Handler) EthInr(c *gin.Context) {
	q, err := h.quotes.EthInr(c.Request.Context())
	if err != nil {
		if errors.Is(err, quotes.ErrUnavailable) {
			apiutil.RFC7807ErrorResponse(c, problems.NewQuoteUnavailableError("ETH/INR rate is unavailable", c.Request.URL.Path))
			return
		}
		responses.Error(c, err)
		return
	}
	responses.Success(c, q)
}
