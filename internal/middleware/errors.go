package middleware

import (
	"etherstake/internal/errs" // Typed API errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Status     string            `json:"status"`           // Always "error"
	StatusCode int               `json:"statusCode"`       // HTTP status code
	Message    string            `json:"message"`          // Client-safe message
	Fields     map[string]string `json:"fields,omitempty"` // Per-field validation messages
	Stack      string            `json:"stack,omitempty"`  // Underlying error, development only
}

// ErrorHandler renders the last error recorded with c.Error. Internal errors
// are logged and shown generically; dev adds the underlying error as stack.
func ErrorHandler(dev bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		e := errs.As(c.Errors.Last().Err)
		if e.Kind == errs.KindInternal {
			logrus.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"error":  c.Errors.Last().Err.Error(),
			}).Error("Request failed")
		}

		resp := ErrorResponse{
			Status:     "error",
			StatusCode: e.Status(),
			Message:    e.Message,
			Fields:     e.Fields,
		}
		if dev && e.Err != nil {
			resp.Stack = e.Err.Error()
		}
		c.AbortWithStatusJSON(resp.StatusCode, resp)
	}
}

// NotFoundHandler reports unknown routes
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(errs.NotFound("Resource not found - " + c.Request.URL.Path))
	}
}
