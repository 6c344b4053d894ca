// Package repository holds the typed persistence contracts for users and
// stakes together with their gorm implementations.
package repository

import (
	"context" // Request scoped cancellation
	"errors"  // Sentinel errors

	"etherstake/internal/domain" // Persisted models
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale is returned when a conditional update matched no row because
	// the stored version moved on.
	ErrStale = errors.New("stale version")
)

// StakeFilter narrows stake listings. Zero fields are ignored.
type StakeFilter struct {
	Status domain.StakeStatus // Only stakes in this state
	UserID string             // Only stakes of this owner
}

// StakeRepository persists stakes.
type StakeRepository interface {
	Create(ctx context.Context, stake *domain.Stake) error
	GetByID(ctx context.Context, id string) (*domain.Stake, error)
	List(ctx context.Context, filter StakeFilter, limit, offset int) ([]domain.Stake, error)
	Count(ctx context.Context, filter StakeFilter) (int64, error)
	// UpdateIfVersion applies changes only while the stored version equals
	// version, and bumps the version. Returns ErrStale otherwise.
	UpdateIfVersion(ctx context.Context, id string, version int64, changes map[string]any) error
	// Update applies changes unconditionally and bumps the version.
	Update(ctx context.Context, id string, changes map[string]any) error
	SumAmount(ctx context.Context, status domain.StakeStatus) (float64, error)
	SumActualRewards(ctx context.Context, status domain.StakeStatus) (float64, error)
}

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByWalletAddress(ctx context.Context, address string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, changes map[string]any) error
	Delete(ctx context.Context, id string) error
	AppendStake(ctx context.Context, userID, stakeID string) error
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Users() UserRepository
	Stakes() StakeRepository
	// WithTx runs fn against a store bound to a single transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}
