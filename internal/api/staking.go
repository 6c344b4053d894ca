package api

import (
	"context"  // Context for cache operations
	"fmt"      // Cache key formatting
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"etherstake/internal/domain"     // Importing domain models
	"etherstake/internal/errs"       // Typed API errors
	"etherstake/internal/middleware" // Current user lookup
	"etherstake/internal/repository" // Stake filters
	"etherstake/internal/service"    // Stake lifecycle
	"etherstake/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

const (
	stakesUserPrefix = "stakes:user:" // Per-user cached pages
	stakesAllPrefix  = "stakes:all:"  // Admin cached pages
	stakesStatsKey   = "stakes:stats" // Admin aggregates
)

// CreateStakeRequest represents a stake request
type CreateStakeRequest struct {
	Amount          float64 `json:"amount" binding:"required,gt=0"`              // Principal
	Duration        int     `json:"duration" binding:"required,min=1,max=36500"` // Term in days, up to domain.MaxDurationDays
	WalletAddress   string  `json:"walletAddress" binding:"required,eth_addr"`   // Must equal the user's wallet
	TransactionHash *string `json:"transactionHash" binding:"omitempty,max=66"`  // Optional on-chain reference
}

// UpdateStakeStatusRequest is the admin override body
type UpdateStakeStatusRequest struct {
	Status          domain.StakeStatus `json:"status" binding:"required,oneof=active completed cancelled"` // New status
	TransactionHash *string            `json:"transactionHash" binding:"omitempty,max=66"`                 // Optional correction
}

// cachedStakePage is the cached form of one page of stakes
type cachedStakePage struct {
	Stakes     []domain.Stake     `json:"stakes"`     // Stakes on the page
	Pagination service.Pagination `json:"pagination"` // Page info
}

// StakingHandlers serves the /staking routes
type StakingHandlers struct {
	Stakes   *service.StakeService // Lifecycle engine
	Redis    *redis.Client         // Optional response cache
	CacheTTL time.Duration         // Lifetime of cached pages
}

// CreateStakeHandler opens a stake for the authenticated user
func (h *StakingHandlers) CreateStakeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			_ = c.Error(errs.Unauthenticated("Authentication required"))
			return
		}
		var req CreateStakeRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		stake, err := h.Stakes.CreateStake(c.Request.Context(), service.CreateStakeInput{
			OwnerID:         user.ID,
			Amount:          req.Amount,
			DurationDays:    req.Duration,
			WalletAddress:   req.WalletAddress,
			TransactionHash: req.TransactionHash,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		h.invalidate(c.Request.Context(), stake.UserID, usersCachePrefix) // The owner's stake list changed too
		respond(c, http.StatusCreated, gin.H{"stake": stake})
	}
}

// ListMyStakesHandler returns the authenticated user's stakes
func (h *StakingHandlers) ListMyStakesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			_ = c.Error(errs.Unauthenticated("Authentication required"))
			return
		}
		p := pageFromQuery(c)
		cacheKey := fmt.Sprintf("%s%s:page=%d:limit=%d", stakesUserPrefix, user.ID, p.Page, p.Limit)
		h.servePage(c, cacheKey, func(ctx context.Context) (*service.StakeList, error) {
			return h.Stakes.ListUserStakes(ctx, user.ID, p)
		})
	}
}

// ListAllStakesHandler returns stakes of all users, filtered by status and userId
func (h *StakingHandlers) ListAllStakesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := pageFromQuery(c)
		filter := repository.StakeFilter{
			Status: domain.StakeStatus(c.Query("status")),
			UserID: c.Query("userId"),
		}
		if !filter.Status.Valid() {
			filter.Status = ""
		}
		cacheKey := fmt.Sprintf("%sstatus=%s:user=%s:page=%d:limit=%d", stakesAllPrefix, filter.Status, filter.UserID, p.Page, p.Limit)
		h.servePage(c, cacheKey, func(ctx context.Context) (*service.StakeList, error) {
			return h.Stakes.ListAllStakes(ctx, filter, p)
		})
	}
}

// servePage answers from cache or loads, caches and returns a page of stakes
func (h *StakingHandlers) servePage(c *gin.Context, cacheKey string, load func(context.Context) (*service.StakeList, error)) {
	ctx := c.Request.Context()
	var page cachedStakePage
	// If cached data found, return it
	if found, err := utils.GetCache(ctx, h.Redis, cacheKey, &page); err == nil && found {
		c.Header("X-Cache", "HIT")
		respondList(c, http.StatusOK, len(page.Stakes), page.Pagination, gin.H{"stakes": page.Stakes})
		return
	}
	res, err := load(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	page = cachedStakePage{Stakes: res.Stakes, Pagination: res.Pagination}
	// Cache the response for future requests
	if err := utils.SetCache(ctx, h.Redis, cacheKey, page, h.CacheTTL); err != nil {
		logrus.WithFields(logrus.Fields{"key": cacheKey, "error": err.Error()}).Warn("Cache write failed")
	}
	c.Header("X-Cache", "MISS")
	respondList(c, http.StatusOK, len(page.Stakes), page.Pagination, gin.H{"stakes": page.Stakes})
}

// GetStakeHandler returns a stake to its owner or an admin
func (h *StakingHandlers) GetStakeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stake, ok := h.loadAccessible(c)
		if !ok {
			return
		}
		respond(c, http.StatusOK, gin.H{"stake": stake})
	}
}

// CancelStakeHandler cancels the caller's own stake
func (h *StakingHandlers) CancelStakeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			_ = c.Error(errs.Unauthenticated("Authentication required"))
			return
		}
		stake, err := h.Stakes.CancelStake(c.Request.Context(), c.Param("id"), user.ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		h.invalidate(c.Request.Context(), stake.UserID)
		respond(c, http.StatusOK, gin.H{"stake": stake})
	}
}

// CompleteStakeHandler realizes the reward of a matured stake for its owner or an admin
func (h *StakingHandlers) CompleteStakeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := h.loadAccessible(c)
		if !ok {
			return
		}
		stake, err := h.Stakes.CompleteStake(c.Request.Context(), current.ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		h.invalidate(c.Request.Context(), stake.UserID)
		respond(c, http.StatusOK, gin.H{"stake": stake})
	}
}

// UpdateStakeStatusHandler is the admin override for status and transaction hash
func (h *StakingHandlers) UpdateStakeStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStakeStatusRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		stake, err := h.Stakes.UpdateStake(c.Request.Context(), c.Param("id"), service.StakeUpdate{
			Status:          &req.Status,
			TransactionHash: req.TransactionHash,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		h.invalidate(c.Request.Context(), stake.UserID)
		respond(c, http.StatusOK, gin.H{"stake": stake})
	}
}

// StatsHandler returns total active principal and total rewards paid
func (h *StakingHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var stats service.StakeStats
		if found, err := utils.GetCache(ctx, h.Redis, stakesStatsKey, &stats); err == nil && found {
			c.Header("X-Cache", "HIT")
			respond(c, http.StatusOK, gin.H{"stats": stats})
			return
		}
		res, err := h.Stakes.Stats(ctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		_ = utils.SetCache(ctx, h.Redis, stakesStatsKey, res, h.CacheTTL)
		c.Header("X-Cache", "MISS")
		respond(c, http.StatusOK, gin.H{"stats": res})
	}
}

// loadAccessible fetches the :id stake and checks that the caller owns it or is an admin
func (h *StakingHandlers) loadAccessible(c *gin.Context) (*domain.Stake, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(errs.Unauthenticated("Authentication required"))
		return nil, false
	}
	stake, err := h.Stakes.GetStake(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	if stake.UserID != user.ID && !user.IsAdmin() {
		_ = c.Error(errs.Forbidden("Not authorized to access this stake"))
		return nil, false
	}
	return stake, true
}

// invalidate drops cached pages that may include the owner's stakes, plus any
// extra prefixes the write affected
func (h *StakingHandlers) invalidate(ctx context.Context, ownerID string, extra ...string) {
	if h.Redis == nil {
		return
	}
	prefixes := append([]string{stakesUserPrefix + ownerID + ":", stakesAllPrefix}, extra...)
	for _, prefix := range prefixes {
		if err := utils.DeleteByPrefix(ctx, h.Redis, prefix); err != nil {
			logrus.WithFields(logrus.Fields{"prefix": prefix, "error": err.Error()}).Warn("Cache invalidation failed")
		}
	}
	_ = utils.DeleteCache(ctx, h.Redis, stakesStatsKey)
}
