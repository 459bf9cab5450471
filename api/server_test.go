package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/auth"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/catalog"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/config"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/holdings"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger/store"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/lock"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/quotes"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/tokenization"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var secret = []byte("api-test-secret")

// flakyIndex fails increments while broken is set.
type flakyIndex struct {
	holdings.Index
	broken atomic.Bool
}

func (f *flakyIndex) Increment(ctx context.Context, purchaseID, userID, assetID string, units int64) (bool, error) {
	if f.broken.Load() {
		return false, errors.New("index offline")
	}
	return f.Index.Increment(ctx, purchaseID, userID, assetID, units)
}

type stubQuotes struct {
	err error
}

func (s stubQuotes) EthInr(context.Context) (*quotes.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &quotes.Quote{Pair: "ETH/INR", Rate: decimal.RequireFromString("250000.5"), FetchedAt: time.Now()}, nil
}

type harness struct {
	router http.Handler
	index  *flakyIndex
	t      *testing.T
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	db := testutil.NewSQLite(t)

	st := store.New(db, log)
	require.NoError(t, st.Migrate())
	sqlIndex := holdings.NewSQLIndex(db, log)
	require.NoError(t, sqlIndex.Migrate())
	idx := &flakyIndex{Index: sqlIndex}

	cfg := tokenization.DefaultConfig()
	cfg.ReconcileInterval = 0
	svc := tokenization.NewService(st, idx, lock.NewLocalLocker(), nil, cfg, log)
	v := validation.NewValidator(log)

	srv, err := api.NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, "greenestate-test", api.Dependencies{
		Ledger:    svc,
		Catalog:   catalog.NewService(db, st, v, log),
		Quotes:    opts.quotes,
		Validator: v,
		Auth:      auth.AuthorizationConfig{Secret: secret, Issuer: "greenestate"},
		Checks: map[string]api.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
	}, log)
	require.NoError(t, err)
	return &harness{router: srv.Router(), index: idx, t: t}
}

type options struct {
	quotes stubQuotes
}

func (h *harness) token(userID, role string) string {
	tok, err := auth.IssueToken(secret, "greenestate", userID, role, time.Hour)
	require.NoError(h.t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type problem struct {
	Type       string `json:"type"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Stage      string `json:"stage"`
	PurchaseID string `json:"purchaseId"`
	Errors     []struct {
		Field string `json:"field"`
		Code  string `json:"code"`
	} `json:"errors"`
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p), w.Body.String())
	return p
}

func (h *harness) createProperty(supply int64) string {
	w := h.do(http.MethodPost, "/api/v1/properties", h.token("ops", auth.RoleAdmin), map[string]interface{}{
		"name": "Palm Grove", "location": "Kochi", "price": supply * 1000,
		"price_per_token": 1000, "total_supply": supply, "issuer_id": "issuer",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Asset struct {
			ID string `json:"id"`
		} `json:"asset"`
	}](h.t, w)
	return created.Asset.ID
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, options{})
	w := h.do(http.MethodGet, "/api/v1/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestPurchaseFlow(t *testing.T) {
	h := newHarness(t, options{})
	assetID := h.createProperty(100)
	alice, bob := h.token("alice", auth.RoleClient), h.token("bob", auth.RoleClient)

	w := h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", alice, map[string]int64{"units": 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[tokenization.PurchaseResult](t, w)
	assert.Equal(t, int64(30), res.UnitsFilled)
	assert.Equal(t, tokenization.StageComplete, res.Stage)

	w = h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", bob, map[string]int64{"units": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/api/v1/properties/"+assetID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[catalog.AssetView](t, w)
	held := map[string]int64{}
	for _, rec := range view.Holders {
		held[rec.HolderID] = rec.UnitsHeld
	}
	assert.Equal(t, map[string]int64{"issuer": 20, "alice": 30, "bob": 50}, held)

	w = h.do(http.MethodGet, "/api/v1/portfolio", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]struct {
		AssetID string `json:"asset_id"`
		Units   int64  `json:"units"`
		Asset   struct {
			Name string `json:"name"`
		} `json:"asset"`
	}](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, assetID, entries[0].AssetID)
	assert.Equal(t, int64(30), entries[0].Units)
	assert.Equal(t, "Palm Grove", entries[0].Asset.Name)

	w = h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/resale", alice, map[string]int64{"units": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"units_offered_for_resale":10`)
}

func TestPurchaseErrors(t *testing.T) {
	h := newHarness(t, options{})
	assetID := h.createProperty(10)
	alice := h.token("alice", auth.RoleClient)

	w := h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", "", map[string]int64{"units": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", alice, map[string]int64{"units": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)
	p := decodeProblem(t, w)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "units", p.Errors[0].Field)

	w = h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", alice, map[string]interface{}{
		"units": 1, "wallet_address": "0xnope",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "wallet_address", decodeProblem(t, w).Errors[0].Field)

	w = h.do(http.MethodPost, "/api/v1/properties/"+uuid.NewString()+"/purchase", alice, map[string]int64{"units": 1})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "received", decodeProblem(t, w).Stage)

	w = h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", alice, map[string]int64{"units": 11})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ledger_loaded", decodeProblem(t, w).Stage)
}

func TestPurchase_PartialSuccessThenRetry(t *testing.T) {
	h := newHarness(t, options{})
	assetID := h.createProperty(10)
	alice := h.token("alice", auth.RoleClient)

	h.index.broken.Store(true)
	w := h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", alice, map[string]int64{"units": 4})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	res := decode[tokenization.PurchaseResult](t, w)
	assert.Equal(t, tokenization.StageLedgerPersisted, res.Stage)

	w = h.do(http.MethodGet, "/api/v1/portfolio", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode[json.RawMessage](t, w)))

	h.index.broken.Store(false)
	w = h.do(http.MethodPost, "/api/v1/purchases/"+res.PurchaseID+"/retry-index", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/v1/purchases/"+res.PurchaseID+"/retry-index", h.token("ops", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"complete"`)

	w = h.do(http.MethodGet, "/api/v1/portfolio", alice, nil)
	assert.Contains(t, w.Body.String(), `"units":4`)
}

func TestRepairPortfolio(t *testing.T) {
	h := newHarness(t, options{})
	assetID := h.createProperty(10)
	alice := h.token("alice", auth.RoleClient)

	h.index.broken.Store(true)
	w := h.do(http.MethodPost, "/api/v1/properties/"+assetID+"/purchase", alice, map[string]int64{"units": 3})
	require.Equal(t, http.StatusAccepted, w.Code)
	h.index.broken.Store(false)

	w = h.do(http.MethodPost, "/api/v1/portfolio/repair?user_id=bob", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/v1/portfolio/repair", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"units":3`)

	w = h.do(http.MethodPost, "/api/v1/portfolio/repair?user_id=alice", h.token("ops", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPropertyAdmin(t *testing.T) {
	h := newHarness(t, options{})
	admin := h.token("ops", auth.RoleAdmin)

	w := h.do(http.MethodPost, "/api/v1/properties", h.token("alice", auth.RoleClient), map[string]interface{}{
		"name": "X", "location": "Y", "total_supply": 5,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/v1/properties", admin, map[string]interface{}{
		"name": "<script>x</script>", "location": "Y", "total_supply": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/v1/properties", admin, map[string]interface{}{
		"name": "Hill Cottage", "location": "Ooty", "total_supply": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	// Issuer defaults to the calling admin.
	assert.Contains(t, w.Body.String(), `"holder_id":"ops"`)
	assetID := h.createProperty(8)

	w = h.do(http.MethodPatch, "/api/v1/properties/"+assetID, admin, map[string]string{"location": "Munnar"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"location":"Munnar"`)

	w = h.do(http.MethodGet, "/api/v1/properties?per_page=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Pagination struct {
			TotalRecords int64 `json:"total_records"`
			TotalPages   int   `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.Pagination.TotalRecords)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	w = h.do(http.MethodGet, "/api/v1/properties/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEthInr(t *testing.T) {
	h := newHarness(t, options{})
	w := h.do(http.MethodGet, "/api/v1/ethrate/eth-inr", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rate":"250000.5"`)

	down := newHarness(t, options{quotes: stubQuotes{err: quotes.ErrUnavailable}})
	w = down.do(http.MethodGet, "/api/v1/ethrate/eth-inr", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
