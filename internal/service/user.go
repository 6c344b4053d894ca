package service

import (
	"context" // Request scoped cancellation
	"errors"  // Sentinel matching
	"strings" // Input trimming

	"etherstake/internal/domain"     // User model
	"etherstake/internal/errs"       // Typed domain errors
	"etherstake/internal/repository" // Persistence

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"golang.org/x/crypto/bcrypt" // Bcrypt for password hashing
)

// PasswordCost is the bcrypt cost factor for stored password hashes.
const PasswordCost = 10

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

const (
	errEmailTaken  = "Email is already taken"                                    // Email uniqueness
	errWalletTaken = "Wallet address is already associated with another account" // Wallet uniqueness
	errBadLogin    = "Invalid email or password"                                 // Same for unknown email and bad password
)

// RegisterInput carries sign-up fields.
type RegisterInput struct {
	Name          string  // Display name
	Email         string  // Login, normalised to lower case
	Password      string  // Plain text, hashed before storage
	WalletAddress *string // Optional staking wallet
}

// UserUpdate lists optional changes. Nil fields are left untouched.
type UserUpdate struct {
	Name          *string      // New display name
	Email         *string      // New login email
	WalletAddress *string      // New staking wallet
	Role          *domain.Role // Admin only
	Password      *string      // New plain text password
}

// UserList is one page of users.
type UserList struct {
	Users      []domain.User // Users on the page
	Pagination Pagination    // Page info
}

// UserService manages accounts and credentials.
type UserService struct {
	users repository.UserRepository // User persistence
}

// NewUserService creates a UserService backed by users
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Register creates a user with a hashed password. Email and wallet must be unused.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if !strings.Contains(in.Email, "@") {
		fields["email"] = "must be a valid email"
	}
	if len(in.Password) < MinPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}
	if in.WalletAddress != nil && !domain.IsWalletAddress(*in.WalletAddress) {
		fields["walletAddress"] = "must be 0x followed by 40 hex characters"
	}
	if len(fields) > 0 {
		return nil, errs.ValidationFields("Invalid registration request", fields)
	}

	email := domain.NormalizeEmail(in.Email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	if in.WalletAddress != nil {
		if err := s.ensureWalletFree(ctx, *in.WalletAddress, ""); err != nil {
			return nil, err
		}
	}

	hash, err := hashPassword(in.Password) // Hash the password
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		PasswordHash:  hash,
		WalletAddress: in.WalletAddress,
		Role:          domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent sign-up
			return nil, errs.Conflict("Email or wallet address is already registered")
		}
		return nil, errs.Internal(err)
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID}).Info("User registered")
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password yield the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.Unauthenticated(errBadLogin)
		}
		return nil, errs.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errs.Unauthenticated(errBadLogin)
	}
	return user, nil
}

// GetUser loads a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("User not found")
		}
		return nil, errs.Internal(err)
	}
	return user, nil
}

// UpdateUser applies upd, re-checking uniqueness of changed email/wallet and
// re-hashing a changed password.
func (s *UserService) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*domain.User, error) {
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, errs.ValidationFields("Invalid update", map[string]string{"name": "must not be empty"})
		}
		changes["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		email := domain.NormalizeEmail(*upd.Email)
		if !strings.Contains(email, "@") {
			return nil, errs.ValidationFields("Invalid update", map[string]string{"email": "must be a valid email"})
		}
		if email != existing.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			changes["email"] = email
		}
	}
	if upd.WalletAddress != nil {
		addr := *upd.WalletAddress
		if !domain.IsWalletAddress(addr) {
			return nil, errs.ValidationFields("Invalid update", map[string]string{"walletAddress": "must be 0x followed by 40 hex characters"})
		}
		if existing.WalletAddress == nil || *existing.WalletAddress != addr {
			if err := s.ensureWalletFree(ctx, addr, id); err != nil {
				return nil, err
			}
			changes["wallet_address"] = addr
		}
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, errs.ValidationFields("Invalid update", map[string]string{"role": "must be user or admin"})
		}
		changes["role"] = *upd.Role
	}
	if upd.Password != nil {
		if len(*upd.Password) < MinPasswordLength {
			return nil, errs.ValidationFields("Invalid update", map[string]string{"password": "must be at least 8 characters"})
		}
		hash, err := hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash
	}
	if len(changes) == 0 {
		return existing, nil
	}

	if err := s.users.Update(ctx, id, changes); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, errs.NotFound("User not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, errs.Conflict("Email or wallet address is already registered")
		}
		return nil, errs.Internal(err)
	}
	return s.GetUser(ctx, id)
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return errs.Unauthenticated("Current password is incorrect")
	}
	_, err = s.UpdateUser(ctx, id, UserUpdate{Password: &next})
	return err
}

// ListUsers returns a page of users.
func (s *UserService) ListUsers(ctx context.Context, p Page) (*UserList, error) {
	users, err := s.users.List(ctx, p.Limit, p.Offset())
	if err != nil {
		return nil, errs.Internal(err)
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return &UserList{Users: users, Pagination: NewPagination(total, p)}, nil
}

// DeleteUser removes a user. Admin only; stakes are kept for bookkeeping.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.NotFound("User not found")
		}
		return errs.Internal(err)
	}
	logrus.WithFields(logrus.Fields{"user_id": id}).Warn("User deleted")
	return nil
}

// ensureEmailFree fails with Conflict if another user holds email
func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return errs.Internal(err)
	case u.ID != selfID:
		return errs.Conflict(errEmailTaken)
	}
	return nil
}

// ensureWalletFree fails with Conflict if another user holds addr
func (s *UserService) ensureWalletFree(ctx context.Context, addr, selfID string) error {
	u, err := s.users.GetByWalletAddress(ctx, addr)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return errs.Internal(err)
	case u.ID != selfID:
		return errs.Conflict(errWalletTaken)
	}
	return nil
}

// hashPassword hashes with bcrypt, which only reads the first 72 bytes
func hashPassword(password string) (string, error) {
	if len(password) > 72 { // Longer input would be silently truncated
		return "", errs.ValidationFields("Invalid password", map[string]string{"password": "must be at most 72 bytes"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", errs.Internal(err)
	}
	return string(hash), nil
}
