package repository

import (
	"context" // Request scoped cancellation

	"etherstake/internal/domain" // Stake model

	"gorm.io/gorm" // GORM ORM library
)

// gormStakes is the gorm StakeRepository
type gormStakes struct {
	db *gorm.DB // Connection or transaction
}

// Create inserts stake; BeforeCreate fills the ID and derived fields
func (r *gormStakes) Create(ctx context.Context, stake *domain.Stake) error {
	return translate(r.db.WithContext(ctx).Create(stake).Error)
}

func (r *gormStakes) GetByID(ctx context.Context, id string) (*domain.Stake, error) {
	var s domain.Stake
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// filtered scopes a query to the non-zero filter fields
func (r *gormStakes) filtered(ctx context.Context, f StakeFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.Stake{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

// List returns newest stakes first.
func (r *gormStakes) List(ctx context.Context, f StakeFilter, limit, offset int) ([]domain.Stake, error) {
	var stakes []domain.Stake
	err := r.filtered(ctx, f).
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&stakes).Error
	if err != nil {
		return nil, err
	}
	return stakes, nil
}

func (r *gormStakes) Count(ctx context.Context, f StakeFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateIfVersion is the compare-and-swap used by lifecycle transitions
func (r *gormStakes) UpdateIfVersion(ctx context.Context, id string, version int64, changes map[string]any) error {
	changes["version"] = gorm.Expr("version + 1") // Invalidate concurrent readers
	res := r.db.WithContext(ctx).
		Model(&domain.Stake{}).
		Where("id = ? AND version = ?", id, version).
		Updates(changes)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale // Missing or version moved on
	}
	return nil
}

// Update applies changes regardless of version
func (r *gormStakes) Update(ctx context.Context, id string, changes map[string]any) error {
	changes["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&domain.Stake{}).
		Where("id = ?", id).
		Updates(changes)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// sum totals column over stakes in status, 0 when none match
func (r *gormStakes) sum(ctx context.Context, column string, status domain.StakeStatus) (float64, error) {
	var total float64
	err := r.filtered(ctx, StakeFilter{Status: status}).
		Select("COALESCE(SUM(" + column + "), 0)").
		Scan(&total).Error
	return total, err
}

func (r *gormStakes) SumAmount(ctx context.Context, status domain.StakeStatus) (float64, error) {
	return r.sum(ctx, "amount", status)
}

func (r *gormStakes) SumActualRewards(ctx context.Context, status domain.StakeStatus) (float64, error) {
	return r.sum(ctx, "actual_rewards", status)
}
