package middleware

import (
	"slices" // Wildcard lookup
	"time"   // Preflight cache age

	"github.com/gin-contrib/cors" // CORS handling for gin
	"github.com/gin-gonic/gin"    // Gin web framework
)

// CORSMiddleware lets browser clients on the given origins call the API.
// An empty list or "*" allows any origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"X-Cache", "Retry-After", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true // Same as the bare cors() default
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
