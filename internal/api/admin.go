package api

import (
	"fmt"      // Cache key formatting
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"etherstake/internal/domain"  // Importing domain models
	"etherstake/internal/service" // Account service
	"etherstake/internal/utils"   // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

const usersCachePrefix = "admin:users:" // Cached user pages

// Request struct for admin user updates
type AdminUpdateUserRequest struct {
	Name          *string      `json:"name" binding:"omitempty,min=1,max=100"`     // Display name
	Email         *string      `json:"email" binding:"omitempty,email"`            // Login email
	Role          *domain.Role `json:"role" binding:"omitempty,oneof=user admin"`  // Role
	WalletAddress *string      `json:"walletAddress" binding:"omitempty,eth_addr"` // Wallet
}

// cachedUserPage is the cached form of one page of users
type cachedUserPage struct {
	Users      []domain.User      `json:"users"`      // Users on the page
	Pagination service.Pagination `json:"pagination"` // Page info
}

// UserAdminHandlers serves the admin /users routes
type UserAdminHandlers struct {
	Users    *service.UserService // Account service
	Redis    *redis.Client        // Optional response cache
	CacheTTL time.Duration        // Lifetime of cached pages
}

// ListUsersHandler returns a page of users
func (h *UserAdminHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p := pageFromQuery(c)
		// Create a cache key based on pagination parameters
		cacheKey := fmt.Sprintf("%spage=%d:limit=%d", usersCachePrefix, p.Page, p.Limit)

		var page cachedUserPage
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, h.Redis, cacheKey, &page); err == nil && found {
			c.Header("X-Cache", "HIT")
			respondList(c, http.StatusOK, len(page.Users), page.Pagination, gin.H{"users": page.Users})
			return
		}

		res, err := h.Users.ListUsers(ctx, p)
		if err != nil {
			_ = c.Error(err)
			return
		}
		page = cachedUserPage{Users: res.Users, Pagination: res.Pagination}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, h.Redis, cacheKey, page, h.CacheTTL)
		c.Header("X-Cache", "MISS")
		respondList(c, http.StatusOK, len(page.Users), page.Pagination, gin.H{"users": page.Users})
	}
}

// GetUserHandler returns one user
func (h *UserAdminHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.Users.GetUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		respond(c, http.StatusOK, gin.H{"user": user})
	}
}

// UpdateUserHandler changes profile fields and role of any user
func (h *UserAdminHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdminUpdateUserRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		user, err := h.Users.UpdateUser(c.Request.Context(), c.Param("id"), service.UserUpdate{
			Name:          req.Name,
			Email:         req.Email,
			Role:          req.Role,
			WalletAddress: req.WalletAddress,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		h.invalidate(c)
		respond(c, http.StatusOK, gin.H{"user": user})
	}
}

// DeleteUserHandler removes a user
func (h *UserAdminHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Users.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}
		h.invalidate(c)
		c.Status(http.StatusNoContent)
	}
}

// invalidate drops every cached user page
func (h *UserAdminHandlers) invalidate(c *gin.Context) {
	_ = utils.DeleteByPrefix(c.Request.Context(), h.Redis, usersCachePrefix)
}
