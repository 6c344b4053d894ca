package middleware

import (
	"context" // Context for user lookups
	"errors"  // Error classification
	"strings" // String manipulation

	"etherstake/internal/domain" // Domain models
	"etherstake/internal/errs"   // Typed API errors
	"etherstake/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// UserLoader resolves the token subject into a user
type UserLoader interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// JWTAuthMiddleware validates the bearer token and loads the user it was issued for
func JWTAuthMiddleware(secret string, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, errs.Unauthenticated("Authentication required"))
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")) // Extract the token string
		if tokenStr == "" {
			abort(c, errs.Unauthenticated("Invalid authentication token"))
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			if errors.Is(err, utils.ErrTokenExpired) {
				abort(c, errs.Unauthenticated("Token expired"))
				return
			}
			abort(c, errs.Unauthenticated("Invalid token"))
			return
		}
		// The account may have been deleted after the token was issued
		user, err := users.GetUser(c.Request.Context(), claims.UserID())
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				abort(c, errs.Unauthenticated("User not found"))
				return
			}
			abort(c, err)
			return
		}
		c.Set(UserIDKey, user.ID) // Store userID in context
		c.Set(UserKey, user)      // Store the loaded user for handlers
		c.Next()                  // Proceed to the next handler
	}
}

// CurrentUser returns the user attached by JWTAuthMiddleware
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

// abort records err for ErrorHandler and stops the chain
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
