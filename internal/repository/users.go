package repository

import (
	"context" // Request scoped cancellation
	"slices"  // Copy of the stake list

	"etherstake/internal/domain" // User model

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Row locking
)

// gormUsers is the gorm UserRepository
type gormUsers struct {
	db *gorm.DB // Connection or transaction
}

// Create inserts user; a taken email or wallet yields ErrDuplicate
func (r *gormUsers) Create(ctx context.Context, user *domain.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// first loads the single user matching query
func (r *gormUsers) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *gormUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail matches the normalised email
func (r *gormUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", domain.NormalizeEmail(email))
}

func (r *gormUsers) GetByWalletAddress(ctx context.Context, address string) (*domain.User, error) {
	return r.first(ctx, "wallet_address = ?", address)
}

// List returns newest users first
func (r *gormUsers) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *gormUsers) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Update applies changes to one user
func (r *gormUsers) Update(ctx context.Context, id string, changes map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound // No such user
	}
	return nil
}

// Delete removes one user; stakes are left in place
func (r *gormUsers) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendStake adds stakeID to the user's ordered stake list. The row is read
// with a locking read so concurrent appends for one user queue up instead of
// overwriting each other.
func (r *gormUsers) AppendStake(ctx context.Context, userID, stakeID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := lockedStakeIDs(tx, userID).First(&u).Error; err != nil {
			return translate(err)
		}
		ids := append(slices.Clone(u.StakeIDs), stakeID)
		return tx.Model(&domain.User{}).Where("id = ?", userID).Update("stake_ids", ids).Error
	})
}

// lockedStakeIDs selects the user's stake list FOR UPDATE. SQLite has no row
// locks and its driver drops the clause; its writers are serialised anyway.
func lockedStakeIDs(tx *gorm.DB, userID string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Select("id", "stake_ids").
		Where("id = ?", userID)
}
