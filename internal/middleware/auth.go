package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/utils"
	"github.com/huangang/replydesk/pkg/response"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// bearerToken returns the JWT from the Authorization header, or from the
// token query parameter used by browser download links.
func bearerToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if q := c.Query("token"); q != "" {
		return q, true
	}
	return "", false
}

// AuthRequired accepts a valid JWT and stores its claims in the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}
		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != models.RoleAdmin {
			response.Forbidden(c, "admin access required")
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextUserID); ok {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == models.RoleAdmin
}
