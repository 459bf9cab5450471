// Package quotes fetches the informational ETH/INR rate shown next to
// token prices.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cacheKey = "quotes:eth:inr"

// ErrUnavailable is returned when no rate can be fetched
var ErrUnavailable = errors.New("quote unavailable")

// Quote is one ETH/INR observation
type Quote struct {
	Pair      string          `json:"pair"`
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
	Cached    bool            `json:"cached"`
}

// Provider fetches ETH/INR from a simple/price endpoint with an optional
// Redis cache in front.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      redis.UniversalClient
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewProvider creates a quote provider. cache may be nil.
func NewProvider(baseURL, apiKey string, timeout time.Duration, cache redis.UniversalClient, cacheTTL time.Duration, logger *zap.Logger) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// EthInr returns the current ETH/INR rate, served from cache when fresh
func (p *Provider) EthInr(ctx context.Context) (*Quote, error) {
	if q := p.cached(ctx); q != nil {
		return q, nil
	}

	rate, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("Failed to fetch ETH/INR rate", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q := &Quote{Pair: "ETH/INR", Rate: rate, Source: p.baseURL, FetchedAt: time.Now().UTC()}
	p.store(ctx, q)
	return q, nil
}

func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=ethereum&vs_currencies=inr", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	rate, ok := apiResp["ethereum"]["inr"]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, errors.New("response has no ethereum/inr rate")
	}
	return rate, nil
}

func (p *Provider) cached(ctx context.Context) *Quote {
	if p.cache == nil || p.cacheTTL <= 0 {
		return nil
	}
	raw, err := p.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Debug("Quote cache read failed", zap.Error(err))
		}
		return nil
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil
	}
	q.Cached = true
	return &q
}

func (p *Provider) store(ctx context.Context, q *Quote) {
	if p.cache == nil || p.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, cacheKey, raw, p.cacheTTL).Err(); err != nil {
		p.logger.Debug("Quote cache write failed", zap.Error(err))
	}
}
