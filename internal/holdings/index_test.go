package holdings

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func backends(t *testing.T) map[string]Index {
	t.Helper()
	logger := zaptest.NewLogger(t)

	_, client := testutil.NewRedis(t)
	sqlIndex := NewSQLIndex(testutil.NewSQLite(t), logger)
	require.NoError(t, sqlIndex.Migrate())

	return map[string]Index{
		BackendRedis: NewRedisIndex(client, time.Hour, logger),
		BackendSQL:   sqlIndex,
	}
}

func TestIndex_IncrementAndGet(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			applied, err := idx.Increment(ctx, "p1", "alice", "asset-1", 30)
			require.NoError(t, err)
			assert.True(t, applied)
			applied, err = idx.Increment(ctx, "p2", "alice", "asset-1", 5)
			require.NoError(t, err)
			assert.True(t, applied)
			_, err = idx.Increment(ctx, "p3", "alice", "asset-2", 7)
			require.NoError(t, err)

			got, err := idx.Get(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"asset-1": 35, "asset-2": 7}, got)

			empty, err := idx.Get(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestIndex_IncrementIsIdempotentPerPurchase(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			applied, err := idx.Increment(ctx, "p1", "bob", "asset-1", 10)
			require.NoError(t, err)
			assert.True(t, applied)

			applied, err = idx.Increment(ctx, "p1", "bob", "asset-1", 10)
			require.NoError(t, err)
			assert.False(t, applied)

			got, err := idx.Get(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, int64(10), got["asset-1"])
		})
	}
}

func TestIndex_MarkAppliedSkipsLaterIncrement(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, idx.Set(ctx, "dana", "asset-1", 10))
			require.NoError(t, idx.MarkApplied(ctx, "p1"))
			require.NoError(t, idx.MarkApplied(ctx, "p1"))

			applied, err := idx.Increment(ctx, "p1", "dana", "asset-1", 10)
			require.NoError(t, err)
			assert.False(t, applied)

			got, err := idx.Get(ctx, "dana")
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"asset-1": 10}, got)

			assert.ErrorIs(t, idx.MarkApplied(ctx, ""), ErrInvalidUnits)
		})
	}
}

func TestIndex_Set(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, idx.Set(ctx, "carol", "asset-1", 12))
			require.NoError(t, idx.Set(ctx, "carol", "asset-1", 4))
			require.NoError(t, idx.Set(ctx, "carol", "asset-2", 9))
			require.NoError(t, idx.Set(ctx, "carol", "asset-2", 0))

			got, err := idx.Get(ctx, "carol")
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"asset-1": 4}, got)

			assert.ErrorIs(t, idx.Set(ctx, "carol", "asset-1", -1), ErrInvalidUnits)
		})
	}
}

func TestIndex_RejectsInvalidIncrement(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := idx.Increment(ctx, "p1", "dave", "asset-1", 0)
			assert.ErrorIs(t, err, ErrInvalidUnits)
			_, err = idx.Increment(ctx, "", "dave", "asset-1", 1)
			assert.ErrorIs(t, err, ErrInvalidUnits)
		})
	}
}

func TestIndex_ConcurrentIncrements(t *testing.T) {
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					// Every purchase id is sent twice.
					_, err := idx.Increment(ctx, fmt.Sprintf("p-%d", i%20), "erin", "asset-1", 1)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			got, err := idx.Get(ctx, "erin")
			require.NoError(t, err)
			assert.Equal(t, int64(20), got["asset-1"])
		})
	}
}
