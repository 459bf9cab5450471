package dbutil

import (
	"errors"
	"testing"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/models"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError("x", nil))
	assert.ErrorIs(t, WrapError("load asset", gorm.ErrRecordNotFound), ledger.ErrNotFound)
	assert.ErrorIs(t, WrapError("write", &pgconn.PgError{Code: SerializationFailureErrorCode}), ledger.ErrConcurrentUpdate)
	assert.ErrorIs(t, WrapError("write", &pgconn.PgError{Code: DuplicateKeyErrorCode}), ledger.ErrConcurrentUpdate)

	err := WrapError("write", &pgconn.PgError{Code: "53300"})
	assert.ErrorIs(t, err, ledger.ErrPersistenceFailure)
	assert.NotErrorIs(t, err, ledger.ErrConcurrentUpdate)

	already := ledger.ErrConcurrentUpdate
	assert.Same(t, already, WrapError("again", already))

	assert.ErrorIs(t, WrapError("io", errors.New("disk gone")), ledger.ErrPersistenceFailure)
}

func TestFindOne(t *testing.T) {
	db := testutil.NewSQLite(t, &models.Holding{})
	require.NoError(t, db.Create(&models.Holding{UserID: "u1", AssetID: "a1", UnitsHeld: 7}).Error)

	h, err := FindOne[models.Holding](db.Where("user_id = ?", "u1"), "holding")
	require.NoError(t, err)
	assert.Equal(t, int64(7), h.UnitsHeld)

	_, err = FindOne[models.Holding](db.Where("user_id = ?", uuid.NewString()), "holding")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
