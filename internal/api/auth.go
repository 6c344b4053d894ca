package api

import (
	"net/http" // HTTP status codes
	"time"     // Token lifetime

	"etherstake/internal/errs"       // Typed API errors
	"etherstake/internal/middleware" // Current user lookup
	"etherstake/internal/service"    // Account service
	"etherstake/internal/utils"      // JWT utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Request struct for registration
type RegisterRequest struct {
	Name          string  `json:"name" binding:"required,max=100"`            // Display name
	Email         string  `json:"email" binding:"required,email"`             // Login email
	Password      string  `json:"password" binding:"required,min=8,max=72"`   // Plain password, hashed before storage
	WalletAddress *string `json:"walletAddress" binding:"omitempty,eth_addr"` // Optional wallet
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"` // Login email
	Password string `json:"password" binding:"required"`    // Plain password
}

// Request struct for profile updates
type UpdateMeRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`     // New display name
	WalletAddress *string `json:"walletAddress" binding:"omitempty,eth_addr"` // New wallet
}

// Request struct for password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`          // Password being replaced
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"` // Replacement password
}

// AuthHandlers serves the /auth routes
type AuthHandlers struct {
	Users     *service.UserService // Account service
	JWTSecret string               // HMAC secret for issued tokens
	TokenTTL  time.Duration        // Lifetime of issued tokens
	Redis     *redis.Client        // Optional cache, user pages are dropped on change
}

// RegisterHandler creates an account and returns it with a token
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		user, err := h.Users.Register(c.Request.Context(), service.RegisterInput{
			Name:          req.Name,
			Email:         req.Email,
			Password:      req.Password,
			WalletAddress: req.WalletAddress,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, h.JWTSecret, h.TokenTTL)
		if err != nil {
			_ = c.Error(errs.Internal(err))
			return
		}
		_ = utils.DeleteByPrefix(c.Request.Context(), h.Redis, usersCachePrefix)
		respond(c, http.StatusCreated, gin.H{"user": user, "token": token})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		user, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			logrus.WithFields(logrus.Fields{"client_ip": c.ClientIP()}).Warn("Failed login attempt")
			_ = c.Error(err)
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, h.JWTSecret, h.TokenTTL)
		if err != nil {
			_ = c.Error(errs.Internal(err))
			return
		}
		respond(c, http.StatusOK, gin.H{"user": user, "token": token})
	}
}

// MeHandler returns the authenticated user
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			_ = c.Error(errs.Unauthenticated("Authentication required"))
			return
		}
		respond(c, http.StatusOK, gin.H{"user": user})
	}
}

// UpdateMeHandler lets a user change their name and wallet address
func (h *AuthHandlers) UpdateMeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			_ = c.Error(errs.Unauthenticated("Authentication required"))
			return
		}
		var req UpdateMeRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		updated, err := h.Users.UpdateUser(c.Request.Context(), user.ID, service.UserUpdate{
			Name:          req.Name,
			WalletAddress: req.WalletAddress,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		_ = utils.DeleteByPrefix(c.Request.Context(), h.Redis, usersCachePrefix)
		respond(c, http.StatusOK, gin.H{"user": updated})
	}
}

// ChangePasswordHandler replaces the password after checking the current one
func (h *AuthHandlers) ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			_ = c.Error(errs.Unauthenticated("Authentication required"))
			return
		}
		var req ChangePasswordRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		if err := h.Users.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, Envelope{Status: "success", Message: "Password updated successfully"})
	}
}
