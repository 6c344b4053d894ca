package repository

import (
	"context" // Request scoped cancellation
	"errors"  // Error classification

	"gorm.io/gorm" // GORM ORM library
)

// GormStore implements Store on top of a *gorm.DB.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. The caller owns db and closes it.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Users returns the user repository bound to the store's connection or transaction
func (s *GormStore) Users() UserRepository { return &gormUsers{db: s.db} }

// Stakes returns the stake repository bound to the store's connection or transaction
func (s *GormStore) Stakes() StakeRepository { return &gormStakes{db: s.db} }

// WithTx runs fn inside a database transaction. Returning an error rolls back.
func (s *GormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps gorm errors onto repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
