package domain

import (
	"regexp"  // Wallet address pattern
	"strings" // Email normalisation
	"time"    // Timestamps

	"github.com/google/uuid" // ID generation
	"gorm.io/datatypes"      // JSON column types
	"gorm.io/gorm"           // GORM ORM library
)

// Role is the authorization level of a user
type Role string

const (
	RoleUser  Role = "user"  // Regular account
	RoleAdmin Role = "admin" // Bypasses ownership checks
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var walletPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`) // 0x + 40 hex characters

// IsWalletAddress reports whether s is a well-formed wallet address
func IsWalletAddress(s string) bool {
	return walletPattern.MatchString(s)
}

// NormalizeEmail trims and lower-cases an email so uniqueness is case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User Model
type User struct {
	ID              string                      `gorm:"primaryKey;size:36" json:"id"`                  // Primary key (UUID)
	Name            string                      `gorm:"size:100;not null" json:"name"`                 // Display name
	Email           string                      `gorm:"size:255;uniqueIndex;not null" json:"email"`    // Unique, lower-cased
	PasswordHash    string                      `gorm:"not null" json:"-"`                             // Hashed password, never serialized
	WalletAddress   *string                     `gorm:"size:42;uniqueIndex" json:"walletAddress"`      // Optional, unique when present
	Role            Role                        `gorm:"size:16;not null;default:user" json:"role"`     // Role: user or admin
	IsEmailVerified bool                        `gorm:"not null;default:false" json:"isEmailVerified"` // Email verification flag
	StakeIDs        datatypes.JSONSlice[string] `gorm:"column:stake_ids" json:"stakes"`                // Ordered stake references
	CreatedAt       time.Time                   `json:"createdAt"`                                     // Creation timestamp
	UpdatedAt       time.Time                   `json:"updatedAt"`                                     // Last update timestamp
}

// BeforeCreate assigns an ID and defaults before the row is inserted
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.StakeIDs == nil {
		u.StakeIDs = datatypes.JSONSlice[string]{}
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
