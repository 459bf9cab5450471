package dbutil

import (
	"errors"
	"fmt"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error codes that mean another writer got there first
const (
	DuplicateKeyErrorCode         = "23505"
	SerializationFailureErrorCode = "40001"
	DeadlockDetectedErrorCode     = "40P01"
)

// WrapError maps a gorm error to a ledger error. Conflicts between
// concurrent writers become ErrConcurrentUpdate so callers can retry;
// everything else is a persistence failure.
func WrapError(op string, err error) error {
	var pgErr *pgconn.PgError

	if err == nil {
		return nil
	} else if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrPersistenceFailure) {
		return err
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, op)
	} else if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: failed to %s: %v", ledger.ErrConcurrentUpdate, op, err)
	} else if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case DuplicateKeyErrorCode, SerializationFailureErrorCode, DeadlockDetectedErrorCode:
			return fmt.Errorf("%w: failed to %s: %v", ledger.ErrConcurrentUpdate, op, err)
		}
	}

	return fmt.Errorf("%w: failed to %s: %v", ledger.ErrPersistenceFailure, op, err)
}

// FindOne loads the first row matching db into a new T
func FindOne[T any](db *gorm.DB, what string) (*T, error) {
	var item T
	result := db.Limit(1).Find(&item)
	if result.Error != nil {
		return nil, WrapError("load "+what, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNotFound, what)
	}
	return &item, nil
}
