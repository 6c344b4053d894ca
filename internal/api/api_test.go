package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"etherstake/internal/config"
	"etherstake/internal/dbtest"
	"etherstake/internal/domain"
	"etherstake/internal/repository"
	"etherstake/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceWallet = "0x1234567890abcdef1234567890abcdef12345678"
	bobWallet   = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	users  *service.UserService
	clock  *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repository.NewGormStore(dbtest.Open(t))
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := service.NewUserService(store.Users())
	cfg := &config.Config{
		AppEnv:          "test",
		JWTSecret:       "test-secret",
		JWTExpiresIn:    time.Hour,
		CacheTTL:        time.Minute,
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
	}
	router := NewRouter(Deps{
		Config: cfg,
		Users:  users,
		Stakes: service.NewStakeService(store, service.WithClock(clk.Now)),
		Redis:  rdb,
	})
	return &harness{t: t, router: router, users: users, clock: clk}
}

type response struct {
	Code    int
	Header  http.Header
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Fields  map[string]string  `json:"fields"`
	Results int                `json:"results"`
	Page    service.Pagination `json:"pagination"`
	Data    json.RawMessage    `json:"data"`
}

func (h *harness) do(method, path, token string, body any) response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	res := response{Code: w.Code, Header: w.Header()}
	if w.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	}
	return res
}

func decode[T any](t *testing.T, raw json.RawMessage, key string) T {
	t.Helper()
	var wrapper map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &wrapper))
	var v T
	require.NoError(t, json.Unmarshal(wrapper[key], &v))
	return v
}

// register signs up a user and returns its ID and token
func (h *harness) register(email string, wallet *string) (string, string) {
	h.t.Helper()
	body := gin.H{"name": "Test User", "email": email, "password": "password123"}
	if wallet != nil {
		body["walletAddress"] = *wallet
	}
	res := h.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(h.t, http.StatusCreated, res.Code, res.Message)
	user := decode[domain.User](h.t, res.Data, "user")
	token := decode[string](h.t, res.Data, "token")
	return user.ID, token
}

func (h *harness) admin() string {
	h.t.Helper()
	id, token := h.register("admin@example.com", nil)
	role := domain.RoleAdmin
	_, err := h.users.UpdateUser(context.Background(), id, service.UserUpdate{Role: &role})
	require.NoError(h.t, err)
	return token
}

func (h *harness) createStake(token, wallet string, amount float64, days int) domain.Stake {
	h.t.Helper()
	res := h.do(http.MethodPost, "/api/staking", token, gin.H{"amount": amount, "duration": days, "walletAddress": wallet})
	require.Equal(h.t, http.StatusCreated, res.Code, res.Message)
	return decode[domain.Stake](h.t, res.Data, "stake")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "Server is running", res.Message)
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	w := aliceWallet
	id, token := h.register("alice@example.com", &w)

	res := h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, decode[string](t, res.Data, "token"))

	res = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Invalid email or password", res.Message)

	res = h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	me := decode[map[string]any](t, res.Data, "user")
	assert.Equal(t, id, me["id"])
	assert.NotContains(t, me, "passwordHash")
	assert.NotContains(t, me, "PasswordHash")

	res = h.do(http.MethodPatch, "/api/auth/me", token, gin.H{"name": "Alice B"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Alice B", decode[domain.User](t, res.Data, "user").Name)

	res = h.do(http.MethodPatch, "/api/auth/change-password", token, gin.H{"currentPassword": "nope-nope", "newPassword": "password456"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Current password is incorrect", res.Message)

	res = h.do(http.MethodPatch, "/api/auth/change-password", token, gin.H{"currentPassword": "password123", "newPassword": "password456"})
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Password updated successfully", res.Message)

	res = h.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Authentication required", res.Message)
}

func TestRegisterErrors(t *testing.T) {
	h := newHarness(t)
	h.register("alice@example.com", nil)

	res := h.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Dup", "email": "Alice@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = h.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Bad", "email": "bad@example.com", "password": "password123", "walletAddress": "0x123"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Fields, "walletAddress")

	res = h.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "is required", res.Fields["name"])
	assert.Equal(t, "must be a valid email", res.Fields["email"])
	assert.Equal(t, "is required", res.Fields["password"])
}

func TestStakingLifecycle(t *testing.T) {
	h := newHarness(t)
	aw, bw := aliceWallet, bobWallet
	_, alice := h.register("alice@example.com", &aw)
	_, bob := h.register("bob@example.com", &bw)
	admin := h.admin()

	stake := h.createStake(alice, aliceWallet, 1000, 100)
	assert.Equal(t, domain.StakeActive, stake.Status)
	assert.True(t, stake.EndDate.Equal(stake.StartDate.Add(100*domain.Day)))

	// wallet must be the caller's own
	res := h.do(http.MethodPost, "/api/staking", bob, gin.H{"amount": 1, "duration": 1, "walletAddress": aliceWallet})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Wallet address does not match user wallet", res.Message)

	res = h.do(http.MethodPost, "/api/staking", alice, gin.H{"amount": -5, "duration": 0, "walletAddress": aliceWallet})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Fields, "amount")
	assert.Contains(t, res.Fields, "duration")

	path := "/api/staking/" + stake.ID
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/staking/missing", alice, nil).Code)

	res = h.do(http.MethodPatch, path+"/complete", alice, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Stake has not reached end date yet", res.Message)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPatch, path+"/cancel", bob, nil).Code)

	h.clock.Advance(50 * domain.Day)
	res = h.do(http.MethodPatch, path+"/cancel", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	cancelled := decode[domain.Stake](t, res.Data, "stake")
	assert.Equal(t, domain.StakeCancelled, cancelled.Status)
	assert.InDelta(t, 25.0, cancelled.Penalties, 1e-9)

	res = h.do(http.MethodPatch, path+"/cancel", alice, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Stake is already cancelled", res.Message)

	matured := h.createStake(alice, aliceWallet, 1000, 365)
	h.clock.Advance(365 * domain.Day)
	res = h.do(http.MethodPatch, "/api/staking/"+matured.ID+"/complete", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	done := decode[domain.Stake](t, res.Data, "stake")
	assert.InDelta(t, 10.0, done.ActualRewards, 1e-9)

	res = h.do(http.MethodGet, "/api/staking/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stats := decode[service.StakeStats](t, res.Data, "stats")
	assert.Zero(t, stats.TotalActiveStaked)
	assert.InDelta(t, 10.0, stats.TotalRewardsPaid, 1e-9)
}

func TestStakingAdminRoutes(t *testing.T) {
	h := newHarness(t)
	aw := aliceWallet
	aliceID, alice := h.register("alice@example.com", &aw)
	admin := h.admin()
	stake := h.createStake(alice, aliceWallet, 10, 10)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/staking/admin/all", alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPatch, "/api/staking/"+stake.ID+"/status", alice, gin.H{"status": "completed"}).Code)

	res := h.do(http.MethodPatch, "/api/staking/"+stake.ID+"/status", admin, gin.H{"status": "frozen"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Fields, "status")

	res = h.do(http.MethodPatch, "/api/staking/"+stake.ID+"/status", admin, gin.H{"status": "cancelled", "transactionHash": "0xfeed"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, domain.StakeCancelled, decode[domain.Stake](t, res.Data, "stake").Status)

	res = h.do(http.MethodGet, "/api/staking/admin/all?status=cancelled&userId="+aliceID, admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, res.Results)

	res = h.do(http.MethodGet, "/api/staking/admin/all?status=active", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 0, res.Results)
}

func TestListStakesPaginationAndCache(t *testing.T) {
	h := newHarness(t)
	aw := aliceWallet
	_, alice := h.register("alice@example.com", &aw)
	for i := 0; i < 25; i++ {
		h.createStake(alice, aliceWallet, 10, 30)
	}

	res := h.do(http.MethodGet, "/api/staking?page=2&limit=10", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 10, res.Results)
	assert.Equal(t, service.Pagination{Total: 25, Page: 2, Pages: 3, Limit: 10}, res.Page)
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))

	res = h.do(http.MethodGet, "/api/staking?page=2&limit=10", alice, nil)
	assert.Equal(t, "HIT", res.Header.Get("X-Cache"))
	assert.Len(t, decode[[]domain.Stake](t, res.Data, "stakes"), 10)

	// a write drops the cached pages
	h.createStake(alice, aliceWallet, 10, 30)
	res = h.do(http.MethodGet, "/api/staking?page=2&limit=10", alice, nil)
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
	assert.Equal(t, int64(26), res.Page.Total)
}

func TestUserAdminRoutes(t *testing.T) {
	h := newHarness(t)
	bobID, bob := h.register("bob@example.com", nil)
	admin := h.admin()

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/users", bob, nil).Code)

	res := h.do(http.MethodGet, "/api/users?limit=1", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, res.Results)
	assert.Equal(t, 2, res.Page.Pages)

	res = h.do(http.MethodPatch, "/api/users/"+bobID, admin, gin.H{"email": "admin@example.com"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = h.do(http.MethodPatch, "/api/users/"+bobID, admin, gin.H{"role": "admin", "walletAddress": bobWallet})
	require.Equal(t, http.StatusOK, res.Code)
	promoted := decode[domain.User](t, res.Data, "user")
	assert.True(t, promoted.IsAdmin())

	res = h.do(http.MethodGet, "/api/users/"+bobID, admin, nil)
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/users/"+bobID, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/users/"+bobID, admin, nil).Code)

	// the deleted user's token no longer authenticates
	res = h.do(http.MethodGet, "/api/auth/me", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "User not found", res.Message)
}

func TestNotFoundRoute(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Resource not found - /api/nope", res.Message)
}

func TestCreateStake_DurationBounds(t *testing.T) {
	h := newHarness(t)
	aw := aliceWallet
	_, alice := h.register("alice@example.com", &aw)

	res := h.do(http.MethodPost, "/api/staking", alice, gin.H{"amount": 1000, "duration": 200000, "walletAddress": aliceWallet})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "must be at most 36500", res.Fields["duration"])

	stake := h.createStake(alice, aliceWallet, 1000, domain.MaxDurationDays)
	assert.True(t, stake.EndDate.After(stake.StartDate))

	res = h.do(http.MethodPatch, "/api/staking/"+stake.ID+"/complete", alice, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Stake has not reached end date yet", res.Message)
}

func TestCreateStake_RefreshesCachedUserPages(t *testing.T) {
	h := newHarness(t)
	aw := aliceWallet
	aliceID, alice := h.register("alice@example.com", &aw)
	admin := h.admin()

	stakesOf := func(res response) []string {
		for _, u := range decode[[]domain.User](t, res.Data, "users") {
			if u.ID == aliceID {
				return u.StakeIDs
			}
		}
		t.Fatalf("user %s not listed", aliceID)
		return nil
	}

	res := h.do(http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, stakesOf(res))
	assert.Equal(t, "HIT", h.do(http.MethodGet, "/api/users", admin, nil).Header.Get("X-Cache"))

	stake := h.createStake(alice, aliceWallet, 10, 30)

	res = h.do(http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
	assert.Equal(t, []string{stake.ID}, stakesOf(res))
}

func TestPreflightRequest(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/staking", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListStakes_HugePageNumber(t *testing.T) {
	h := newHarness(t)
	aw := aliceWallet
	_, alice := h.register("alice@example.com", &aw)
	h.createStake(alice, aliceWallet, 10, 30)

	res := h.do(http.MethodGet, "/api/staking?page=9223372036854775807&limit=100", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 0, res.Results)
	assert.Equal(t, service.MaxPage, res.Page.Page)
}
