package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// Identity is what a valid token proves about the caller.
type Identity struct {
	UserID string
	Email  string
	Role   models.UserRole
}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Identify(token string) (Identity, error)
}

// JWT returns a middleware that validates the bearer token and sets the
// caller's identity in context.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}
		id, err := validator.Identify(parts[1])
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, id.UserID)
		c.Set(ContextUserRole, id.Role)
		c.Set(ContextUserEmail, id.Email)
		c.Next()
	}
}

// UserID returns the authenticated caller's id, or "" outside JWT routes.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// UserRole returns the authenticated caller's platform role.
func UserRole(c *gin.Context) models.UserRole {
	if v, ok := c.Get(ContextUserRole); ok {
		if r, ok := v.(models.UserRole); ok {
			return r
		}
	}
	return ""
}
