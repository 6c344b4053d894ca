package api

import (
	"etherstake/internal/config"     // Application configuration
	"etherstake/internal/metrics"    // Prometheus instrumentation
	"etherstake/internal/middleware" // Custom middleware
	"etherstake/internal/service"    // Domain services

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// Deps are the collaborators the HTTP surface needs
type Deps struct {
	Config *config.Config        // Application configuration
	Users  *service.UserService  // Accounts
	Stakes *service.StakeService // Stake lifecycle
	Redis  *redis.Client         // Optional, nil disables caching and rate limiting
}

// NewRouter builds the gin engine with all routes and middleware
func NewRouter(d Deps) *gin.Engine {
	registerValidation()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		metrics.Middleware(),
		middleware.SecurityHeaders(),
		middleware.CORSMiddleware(d.Config.CORSOrigins),
		middleware.ErrorHandler(d.Config.IsDev()),
	)
	r.NoRoute(middleware.NotFoundHandler())

	r.GET("/health", HealthHandler())               // Liveness endpoint
	r.GET("/metrics", gin.WrapH(metrics.Handler())) // Prometheus scrape endpoint

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(d.Redis, d.Config.RateLimitMax, d.Config.RateLimitWindow))
	authRequired := middleware.JWTAuthMiddleware(d.Config.JWTSecret, d.Users)
	adminOnly := middleware.AdminOnlyMiddleware()

	// Auth routes
	auth := &AuthHandlers{Users: d.Users, JWTSecret: d.Config.JWTSecret, TokenTTL: d.Config.JWTExpiresIn, Redis: d.Redis}
	authGroup := api.Group("/auth")
	authGroup.POST("/register", auth.RegisterHandler()) // Registration endpoint
	authGroup.POST("/login", auth.LoginHandler())       // Login endpoint
	authGroup.Use(authRequired)
	authGroup.GET("/me", auth.MeHandler())                            // Current profile
	authGroup.PATCH("/me", auth.UpdateMeHandler())                    // Profile update
	authGroup.PATCH("/change-password", auth.ChangePasswordHandler()) // Password change

	// User admin routes (protected, admin only)
	users := &UserAdminHandlers{Users: d.Users, Redis: d.Redis, CacheTTL: d.Config.CacheTTL}
	userGroup := api.Group("/users", authRequired, adminOnly)
	userGroup.GET("", users.ListUsersHandler())
	userGroup.GET("/:id", users.GetUserHandler())
	userGroup.PATCH("/:id", users.UpdateUserHandler())
	userGroup.DELETE("/:id", users.DeleteUserHandler())

	// Staking routes (protected by JWT)
	staking := &StakingHandlers{Stakes: d.Stakes, Redis: d.Redis, CacheTTL: d.Config.CacheTTL}
	stakeGroup := api.Group("/staking", authRequired)
	stakeGroup.POST("", staking.CreateStakeHandler())
	stakeGroup.GET("", staking.ListMyStakesHandler())
	stakeGroup.GET("/admin/all", adminOnly, staking.ListAllStakesHandler())
	stakeGroup.GET("/admin/stats", adminOnly, staking.StatsHandler())
	stakeGroup.GET("/:id", staking.GetStakeHandler())
	stakeGroup.PATCH("/:id/cancel", staking.CancelStakeHandler())
	stakeGroup.PATCH("/:id/complete", staking.CompleteStakeHandler())
	stakeGroup.PATCH("/:id/status", adminOnly, staking.UpdateStakeStatusHandler())

	return r
}
