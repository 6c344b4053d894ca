package service

import (
	"context" // Request scoped cancellation
	"errors"  // Sentinel matching
	"fmt"     // Validation messages
	"time"    // Stake clock

	"etherstake/internal/domain"     // Stake and user models
	"etherstake/internal/errs"       // Typed domain errors
	"etherstake/internal/metrics"    // Lifecycle counters
	"etherstake/internal/repository" // Persistence

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// CreateStakeInput carries the fields a user supplies when opening a stake.
type CreateStakeInput struct {
	OwnerID         string  // Authenticated caller
	Amount          float64 // Principal, > 0
	DurationDays    int     // Term, 1..domain.MaxDurationDays
	WalletAddress   string  // Must equal the owner's wallet
	TransactionHash *string // Optional on-chain reference
}

// StakeUpdate is the administrative override payload. Nil fields are left untouched.
type StakeUpdate struct {
	Status          *domain.StakeStatus // New status, any of the three
	TransactionHash *string             // Corrected on-chain reference
}

// StakeList is one page of stakes.
type StakeList struct {
	Stakes     []domain.Stake // Stakes on the page, newest first
	Pagination Pagination     // Page info
}

// StakeStats aggregates over the whole stake collection.
type StakeStats struct {
	TotalActiveStaked float64 `json:"totalActiveStaked"`
	TotalRewardsPaid  float64 `json:"totalRewardsPaid"`
}

// StakeService runs the stake lifecycle: create, cancel, complete and the
// administrative override, plus listings and aggregates.
//
// Transitions are written with a compare-and-swap on the stake version so two
// concurrent cancel/complete calls cannot both succeed.
type StakeService struct {
	store repository.Store // Users and stakes, transactional
	now   func() time.Time // Time source, replaced in tests
}

// StakeOption configures a StakeService.
type StakeOption func(*StakeService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StakeOption {
	return func(s *StakeService) { s.now = now }
}

// NewStakeService creates a StakeService backed by store
func NewStakeService(store repository.Store, opts ...StakeOption) *StakeService {
	s := &StakeService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time in UTC at millisecond precision, which is
// what the database keeps.
func (s *StakeService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// CreateStake opens an active stake for the owner and links it to the owner's
// stake list in the same transaction.
func (s *StakeService) CreateStake(ctx context.Context, in CreateStakeInput) (*domain.Stake, error) {
	fields := map[string]string{}
	if in.Amount <= 0 {
		fields["amount"] = "must be greater than 0"
	}
	if in.DurationDays < 1 {
		fields["duration"] = "must be at least 1"
	} else if in.DurationDays > domain.MaxDurationDays {
		fields["duration"] = fmt.Sprintf("must be at most %d", domain.MaxDurationDays)
	}
	if !domain.IsWalletAddress(in.WalletAddress) {
		fields["walletAddress"] = "must be 0x followed by 40 hex characters"
	}
	if len(fields) > 0 {
		return nil, errs.ValidationFields("Invalid stake request", fields)
	}

	owner, err := s.store.Users().GetByID(ctx, in.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("User not found")
		}
		return nil, errs.Internal(err)
	}
	if owner.WalletAddress == nil || *owner.WalletAddress != in.WalletAddress {
		return nil, errs.Validation("Wallet address does not match user wallet")
	}

	// Insert the stake and link it to the owner atomically
	stake := domain.NewStake(owner.ID, in.WalletAddress, in.Amount, in.DurationDays, s.clock(), in.TransactionHash)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Stakes().Create(ctx, stake); err != nil {
			return err
		}
		return tx.Users().AppendStake(ctx, owner.ID, stake.ID)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": owner.ID,
			"amount":  in.Amount,
			"error":   err.Error(),
		}).Error("Stake creation failed")
		return nil, errs.Internal(err)
	}

	metrics.StakeCreated(stake.Amount)
	logrus.WithFields(logrus.Fields{
		"user_id":  owner.ID,
		"stake_id": stake.ID,
		"amount":   stake.Amount,
		"duration": stake.DurationDays,
	}).Info("Stake created")
	return stake, nil
}

// GetStake loads a stake by ID.
func (s *StakeService) GetStake(ctx context.Context, id string) (*domain.Stake, error) {
	stake, err := s.store.Stakes().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("Stake not found")
		}
		return nil, errs.Internal(err)
	}
	return stake, nil
}

// CancelStake ends an active stake owned by callerID. Cancelling before the
// end date charges a penalty on the remaining term; rewards are forfeited.
func (s *StakeService) CancelStake(ctx context.Context, id, callerID string) (*domain.Stake, error) {
	stake, err := s.GetStake(ctx, id)
	if err != nil {
		return nil, err
	}
	if stake.UserID != callerID {
		return nil, errs.Forbidden("You are not authorized to cancel this stake")
	}
	if stake.Status.Terminal() {
		return nil, alreadyTerminal(stake.Status)
	}

	now := s.clock()
	penalty := stake.Penalty(now) // Zero once the end date is reached
	changes := map[string]any{
		"status":         domain.StakeCancelled,
		"cancelled_at":   now,
		"penalties":      penalty,
		"actual_rewards": 0.0,
	}
	if err := s.transition(ctx, stake, changes); err != nil {
		return nil, err
	}

	metrics.StakeCancelled(penalty)
	logrus.WithFields(logrus.Fields{
		"user_id":   callerID,
		"stake_id":  id,
		"penalties": penalty,
	}).Info("Stake cancelled")
	return s.GetStake(ctx, id)
}

// CompleteStake realizes the estimated reward once the term has elapsed.
func (s *StakeService) CompleteStake(ctx context.Context, id string) (*domain.Stake, error) {
	stake, err := s.GetStake(ctx, id)
	if err != nil {
		return nil, err
	}
	if stake.Status.Terminal() {
		return nil, alreadyTerminal(stake.Status)
	}

	now := s.clock()
	if !stake.Matured(now) {
		return nil, errs.InvalidState("Stake has not reached end date yet")
	}
	changes := map[string]any{
		"status":         domain.StakeCompleted,
		"completed_at":   now,
		"actual_rewards": stake.EstimatedRewards,
	}
	if err := s.transition(ctx, stake, changes); err != nil {
		return nil, err
	}

	metrics.StakeCompleted()
	logrus.WithFields(logrus.Fields{
		"user_id":        stake.UserID,
		"stake_id":       id,
		"actual_rewards": stake.EstimatedRewards,
	}).Info("Stake completed")
	return s.GetStake(ctx, id)
}

// transition writes changes only if the stake still has the version that was
// read. On a miss the stake is re-read to report why.
func (s *StakeService) transition(ctx context.Context, stake *domain.Stake, changes map[string]any) error {
	err := s.store.Stakes().UpdateIfVersion(ctx, stake.ID, stake.Version, changes)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrStale) {
		return errs.Internal(err)
	}
	current, gerr := s.GetStake(ctx, stake.ID)
	if gerr != nil {
		return gerr
	}
	if current.Status.Terminal() {
		return alreadyTerminal(current.Status)
	}
	return errs.Conflict("Stake was modified concurrently, retry the request")
}

// alreadyTerminal reports a transition out of a final state
func alreadyTerminal(status domain.StakeStatus) error {
	return errs.InvalidState("Stake is already " + string(status))
}

// UpdateStake is the administrative escape hatch: it merges the given fields
// without checking lifecycle rules, so an admin can correct a stake in any
// state. Only the status value itself is checked.
func (s *StakeService) UpdateStake(ctx context.Context, id string, upd StakeUpdate) (*domain.Stake, error) {
	changes := map[string]any{}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, errs.ValidationFields("Invalid status value", map[string]string{"status": "must be one of active, completed, cancelled"})
		}
		changes["status"] = *upd.Status
	}
	if upd.TransactionHash != nil {
		changes["transaction_hash"] = *upd.TransactionHash
	}
	if len(changes) == 0 {
		return s.GetStake(ctx, id)
	}

	if err := s.store.Stakes().Update(ctx, id, changes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("Stake not found")
		}
		return nil, errs.Internal(err)
	}

	metrics.StakeUpdated()
	logrus.WithFields(logrus.Fields{"stake_id": id, "changes": len(changes)}).Warn("Stake overridden by admin")
	return s.GetStake(ctx, id)
}

// ListUserStakes returns the user's stakes, newest first.
func (s *StakeService) ListUserStakes(ctx context.Context, userID string, p Page) (*StakeList, error) {
	return s.list(ctx, repository.StakeFilter{UserID: userID}, p)
}

// ListAllStakes returns stakes across users, optionally filtered by status and owner.
func (s *StakeService) ListAllStakes(ctx context.Context, f repository.StakeFilter, p Page) (*StakeList, error) {
	if f.Status != "" && !f.Status.Valid() {
		f.Status = "" // unknown statuses are ignored
	}
	return s.list(ctx, f, p)
}

// list loads one page and the total count for the filter
func (s *StakeService) list(ctx context.Context, f repository.StakeFilter, p Page) (*StakeList, error) {
	stakes, err := s.store.Stakes().List(ctx, f, p.Limit, p.Offset())
	if err != nil {
		return nil, errs.Internal(err)
	}
	total, err := s.store.Stakes().Count(ctx, f)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if stakes == nil {
		stakes = []domain.Stake{}
	}
	return &StakeList{Stakes: stakes, Pagination: NewPagination(total, p)}, nil
}

// TotalActiveStakedAmount sums the principal of all active stakes.
func (s *StakeService) TotalActiveStakedAmount(ctx context.Context) (float64, error) {
	total, err := s.store.Stakes().SumAmount(ctx, domain.StakeActive)
	if err != nil {
		return 0, errs.Internal(err)
	}
	return total, nil
}

// TotalRewardsPaid sums the realized rewards of all completed stakes.
func (s *StakeService) TotalRewardsPaid(ctx context.Context) (float64, error) {
	total, err := s.store.Stakes().SumActualRewards(ctx, domain.StakeCompleted)
	if err != nil {
		return 0, errs.Internal(err)
	}
	return total, nil
}

// Stats returns both aggregates.
func (s *StakeService) Stats(ctx context.Context) (*StakeStats, error) {
	active, err := s.TotalActiveStakedAmount(ctx)
	if err != nil {
		return nil, err
	}
	paid, err := s.TotalRewardsPaid(ctx)
	if err != nil {
		return nil, err
	}
	return &StakeStats{TotalActiveStaked: active, TotalRewardsPaid: paid}, nil
}
