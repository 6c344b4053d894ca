package middleware

import (
	"etherstake/internal/errs" // Typed API errors

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware lets through users with the admin role. It runs after
// JWTAuthMiddleware, which has already loaded the user from the database.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c) // Get user from context
		if !ok {
			abort(c, errs.Unauthenticated("Authentication required"))
			return
		}
		// Check if user role is admin
		if !user.IsAdmin() {
			abort(c, errs.Forbidden("Insufficient permissions"))
			return
		}
		c.Next() // If admin, proceed to the next handler
	}
}
