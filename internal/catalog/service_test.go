package catalog

import (
	"context"
	"testing"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger/store"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	catalog *Service
	store   *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := testutil.NewSQLite(t)
	st := store.New(db, log)
	require.NoError(t, st.Migrate())
	return &fixture{
		catalog: NewService(db, st, validation.NewValidator(log), log),
		store:   st,
	}
}

func (f *fixture) issue(t *testing.T, name string, supply int64) string {
	t.Helper()
	id := uuid.New()
	l, err := ledger.NewAssetLedger(id.String(), "issuer", supply)
	require.NoError(t, err)
	asset := &models.Asset{ID: id, Name: name, Location: "Goa", Price: supply * 5, PricePerToken: 5, IssuerID: "issuer"}
	require.NoError(t, f.store.CreateAsset(context.Background(), asset, l))
	return id.String()
}

func TestList_Paginates(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"A", "B", "C"} {
		f.issue(t, n, 10)
	}

	page, total, err := f.catalog.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	rest, _, err := f.catalog.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestGet_IncludesHolders(t *testing.T) {
	f := newFixture(t)
	id := f.issue(t, "Villa", 50)

	view, err := f.catalog.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Villa", view.Name)
	assert.Equal(t, int64(50), view.AvailableToSell)
	require.Len(t, view.Holders, 1)
	assert.Equal(t, "issuer", view.Holders[0].HolderID)

	_, err = f.catalog.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = f.catalog.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdateMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.issue(t, "Villa", 50)

	name := "  Sea <i>View</i> Villa "
	asset, err := f.catalog.UpdateMetadata(ctx, id, MetadataUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Sea View Villa", asset.Name)
	assert.Equal(t, "Goa", asset.Location)

	// Ledger untouched.
	l, err := f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Version)
	assert.Equal(t, int64(50), l.TotalSupply)

	bad := "<script>alert(1)</script>"
	_, err = f.catalog.UpdateMetadata(ctx, id, MetadataUpdate{Location: &bad})
	assert.ErrorIs(t, err, ledger.ErrInvalidRequest)

	unchanged, err := f.catalog.UpdateMetadata(ctx, id, MetadataUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Sea View Villa", unchanged.Name)
}

func TestSummaries(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t, "A", 10)
	b := f.issue(t, "B", 20)

	got, err := f.catalog.Summaries(context.Background(), []string{a, b, "junk", uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[a].Name)
	assert.Equal(t, int64(20), got[b].TotalSupply)

	empty, err := f.catalog.Summaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNormalizeText(t *testing.T) {
	f := newFixture(t)
	n, l, err := f.catalog.NormalizeText(" Flat 4 ", "Mumbai")
	require.NoError(t, err)
	assert.Equal(t, "Flat 4", n)
	assert.Equal(t, "Mumbai", l)

	_, _, err = f.catalog.NormalizeText("", "Mumbai")
	assert.ErrorIs(t, err, ledger.ErrInvalidRequest)
}
