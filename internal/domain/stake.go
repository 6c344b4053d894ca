package domain

import (
	"math" // Rounding of remaining days
	"time" // Stake term

	"github.com/google/uuid" // ID generation
	"gorm.io/gorm"           // GORM ORM library
)

// StakeStatus is the lifecycle state of a stake
type StakeStatus string

const (
	StakeActive    StakeStatus = "active"    // Locked and accruing
	StakeCompleted StakeStatus = "completed" // Term elapsed, reward realized
	StakeCancelled StakeStatus = "cancelled" // Ended by the owner, reward forfeited
)

// Valid reports whether s is a known status
func (s StakeStatus) Valid() bool {
	return s == StakeActive || s == StakeCompleted || s == StakeCancelled
}

// Terminal reports whether no further transition is allowed out of s
func (s StakeStatus) Terminal() bool {
	return s == StakeCompleted || s == StakeCancelled
}

const (
	DefaultAPY      = 1.0   // Nominal annual rate in percent
	PenaltyRate     = 0.05  // Share of the principal charged over the full remaining term
	MaxDurationDays = 36500 // Longest accepted term; keeps EndDate representable
	Day             = 24 * time.Hour
)

// Stake Model
type Stake struct {
	ID               string      `gorm:"primaryKey;size:36" json:"id"`                        // Primary key (UUID)
	UserID           string      `gorm:"size:36;index;not null" json:"userId"`                // Owning user
	WalletAddress    string      `gorm:"size:42;not null" json:"walletAddress"`               // Staking wallet
	Amount           float64     `gorm:"not null" json:"amount"`                              // Staked principal
	DurationDays     int         `gorm:"not null" json:"duration"`                            // Term in days
	StartDate        time.Time   `gorm:"not null" json:"startDate"`                           // Term start
	EndDate          time.Time   `gorm:"not null" json:"endDate"`                             // StartDate + DurationDays
	APY              float64     `gorm:"column:apy;not null" json:"apy"`                      // Annual rate in percent
	EstimatedRewards float64     `gorm:"not null;default:0" json:"estimatedRewards"`          // Reward at maturity
	ActualRewards    float64     `gorm:"not null;default:0" json:"actualRewards"`             // Realized reward
	Penalties        float64     `gorm:"not null;default:0" json:"penalties"`                 // Early cancellation charge
	Status           StakeStatus `gorm:"size:16;index;not null;default:active" json:"status"` // Lifecycle state
	TransactionHash  *string     `gorm:"size:66" json:"transactionHash"`                      // External on-chain reference
	CancelledAt      *time.Time  `json:"cancelledAt,omitempty"`                               // Set on cancel
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`                               // Set on complete
	Version          int64       `gorm:"not null;default:1" json:"version"`                   // Optimistic concurrency token
	CreatedAt        time.Time   `json:"createdAt"`                                           // Creation timestamp
	UpdatedAt        time.Time   `json:"updatedAt"`                                           // Last update timestamp
}

// NewStake builds an active stake starting at start with derived end date and rewards
func NewStake(userID, walletAddress string, amount float64, durationDays int, start time.Time, txHash *string) *Stake {
	s := &Stake{
		UserID:          userID,
		WalletAddress:   walletAddress,
		Amount:          amount,
		DurationDays:    durationDays,
		StartDate:       start,
		APY:             DefaultAPY,
		Status:          StakeActive,
		TransactionHash: txHash,
		Version:         1,
	}
	s.Recalculate()
	return s
}

// Recalculate derives EndDate and EstimatedRewards from the principal, term and rate
func (s *Stake) Recalculate() {
	s.EndDate = s.StartDate.Add(time.Duration(s.DurationDays) * Day)
	s.EstimatedRewards = EstimateRewards(s.Amount, s.DurationDays, s.APY)
}

// BeforeCreate assigns an ID and keeps derived fields consistent with the inputs
func (s *Stake) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.APY == 0 {
		s.APY = DefaultAPY
	}
	if s.Status == "" {
		s.Status = StakeActive
	}
	if s.Version == 0 {
		s.Version = 1
	}
	s.Recalculate()
	return nil
}

// Penalty returns the early cancellation charge if the stake is cancelled at now
func (s *Stake) Penalty(now time.Time) float64 {
	return CalculatePenalty(s.Amount, s.DurationDays, s.EndDate, now)
}

// Matured reports whether the term has elapsed at now
func (s *Stake) Matured(now time.Time) bool {
	return !now.Before(s.EndDate)
}

// EstimateRewards prorates the annual rate (percent) linearly over the term
func EstimateRewards(amount float64, durationDays int, apy float64) float64 {
	return amount * float64(durationDays) * (apy / 100) / 365
}

// CalculatePenalty charges PenaltyRate on the unexpired share of the term.
// Remaining days are rounded up; nothing is charged once endDate is reached.
func CalculatePenalty(amount float64, durationDays int, endDate, now time.Time) float64 {
	if !now.Before(endDate) || durationDays <= 0 {
		return 0
	}
	remaining := math.Ceil(float64(endDate.Sub(now)) / float64(Day))
	return amount * remaining * PenaltyRate / float64(durationDays)
}
