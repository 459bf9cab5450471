package store

import (
	"context"
	"testing"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.NewSQLite(t)
	s := New(db, zaptest.NewLogger(t))
	require.NoError(t, s.Migrate())
	return s
}

func issue(t *testing.T, s *Store, supply int64) *ledger.AssetLedger {
	t.Helper()
	id := uuid.New()
	l, err := ledger.NewAssetLedger(id.String(), "issuer", supply)
	require.NoError(t, err)
	asset := &models.Asset{ID: id, Name: "Lake House", Location: "Pune", Price: supply * 10, PricePerToken: 10, IssuerID: "issuer"}
	require.NoError(t, s.CreateAsset(context.Background(), asset, l))
	return l
}

func TestStore_CreateAndLoad(t *testing.T) {
	s := newTestStore(t)
	l := issue(t, s, 100)
	assert.Equal(t, int64(1), l.Version)

	loaded, err := s.Load(context.Background(), l.AssetID)
	require.NoError(t, err)
	assert.Equal(t, l.CurrentHolders(), loaded.CurrentHolders())
	assert.Equal(t, int64(100), loaded.TotalSupply)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = s.Load(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_PersistKeepsHolderOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := issue(t, s, 100)

	// Holder ids that sort in the opposite order to insertion.
	for _, buyer := range []string{"zed", "mia", "abe"} {
		alloc, err := ledger.Allocate(l, buyer, 10, ledger.DefaultPolicy())
		require.NoError(t, err)
		next, err := l.Apply(alloc.Holders)
		require.NoError(t, err)
		require.NoError(t, s.Persist(ctx, next, nil))
		l = next
	}

	loaded, err := s.Load(ctx, l.AssetID)
	require.NoError(t, err)
	ids := make([]string, 0, 4)
	for _, h := range loaded.CurrentHolders() {
		ids = append(ids, h.HolderID)
	}
	assert.Equal(t, []string{"issuer", "zed", "mia", "abe"}, ids)
	assert.Equal(t, int64(4), loaded.Version)
}

func TestStore_PersistRejectsStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := issue(t, s, 50)

	alloc1, err := ledger.Allocate(l, "a", 5, ledger.DefaultPolicy())
	require.NoError(t, err)
	first, err := l.Apply(alloc1.Holders)
	require.NoError(t, err)
	alloc2, err := ledger.Allocate(l, "b", 5, ledger.DefaultPolicy())
	require.NoError(t, err)
	second, err := l.Apply(alloc2.Holders)
	require.NoError(t, err)

	require.NoError(t, s.Persist(ctx, first, nil))
	err = s.Persist(ctx, second, nil)
	assert.ErrorIs(t, err, ledger.ErrConcurrentUpdate)
	assert.ErrorIs(t, err, ledger.ErrPersistenceFailure)

	loaded, err := s.Load(ctx, l.AssetID)
	require.NoError(t, err)
	_, hasB := loaded.Holder("b")
	assert.False(t, hasB)
}

func TestStore_PurchaseJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := issue(t, s, 20)

	alloc, err := ledger.Allocate(l, "buyer", 4, ledger.DefaultPolicy())
	require.NoError(t, err)
	next, err := l.Apply(alloc.Holders)
	require.NoError(t, err)

	p := &models.Purchase{
		ID:             uuid.New(),
		AssetID:        uuid.MustParse(l.AssetID),
		BuyerID:        "buyer",
		UnitsRequested: 4,
		UnitsFilled:    4,
		BuyerTotal:     4,
		Status:         models.PurchaseLedgerPersisted,
		CreatedAt:      time.Now().Add(-time.Minute),
	}
	require.NoError(t, s.Persist(ctx, next, p))

	pending, err := s.PendingPurchases(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, p.ID, pending[0].ID)

	mine, err := s.PendingPurchasesOf(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)
	others, err := s.PendingPurchasesOf(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, others)

	require.NoError(t, s.MarkPurchaseComplete(ctx, p.ID))
	require.NoError(t, s.MarkPurchaseComplete(ctx, p.ID))

	got, err := s.GetPurchase(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseComplete, got.Status)
	assert.NotNil(t, got.CompletedAt)

	pending, err = s.PendingPurchases(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	mine, err = s.PendingPurchasesOf(ctx, "buyer")
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = s.GetPurchase(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_StakesOf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		l := issue(t, s, 30)
		alloc, err := ledger.Allocate(l, "carol", int64(3+i), ledger.DefaultPolicy())
		require.NoError(t, err)
		next, err := l.Apply(alloc.Holders)
		require.NoError(t, err)
		require.NoError(t, s.Persist(ctx, next, nil))
	}

	stakes, err := s.StakesOf(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, stakes, 2)
	var total int64
	for _, st := range stakes {
		total += st.UnitsHeld
	}
	assert.Equal(t, int64(7), total)
}
