package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func priceServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "inr", r.URL.Query().Get("vs_currencies"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestEthInr_FetchesAndCaches(t *testing.T) {
	srv, hits := priceServer(t, `{"ethereum":{"inr":281234.56}}`, http.StatusOK)
	mr, client := testutil.NewRedis(t)
	p := NewProvider(srv.URL, "", time.Second, client, time.Minute, zaptest.NewLogger(t))

	q, err := p.EthInr(context.Background())
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("281234.56")))
	assert.False(t, q.Cached)

	q, err = p.EthInr(context.Background())
	require.NoError(t, err)
	assert.True(t, q.Cached)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("281234.56")))
	assert.Equal(t, int32(1), hits.Load())

	mr.FastForward(2 * time.Minute)
	_, err = p.EthInr(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEthInr_NoCache(t *testing.T) {
	srv, hits := priceServer(t, `{"ethereum":{"inr":100}}`, http.StatusOK)
	p := NewProvider(srv.URL, "", time.Second, nil, 0, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := p.EthInr(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestEthInr_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"upstream error", `{}`, http.StatusBadGateway},
		{"missing pair", `{"ethereum":{"usd":3000}}`, http.StatusOK},
		{"garbage", `not json`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := priceServer(t, tt.body, tt.status)
			p := NewProvider(srv.URL, "", time.Second, nil, 0, zaptest.NewLogger(t))
			_, err := p.EthInr(context.Background())
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}
