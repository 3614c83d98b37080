package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"project-tracker/internal/service"
	resp "project-tracker/internal/transport/http/response"
)

const (
	KeyUserID   = "userId"
	KeyUsername = "username"
)

type TokenVerifier interface {
	Verify(token string) (*service.Identity, error)
}

// AuthJWT admits requests carrying a valid bearer token and records the
// caller's identity on the context. A missing token is 401, a bad one 403.
func AuthJWT(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(bearer(c.GetHeader("Authorization")))
		if err != nil {
			resp.AbortErr(c, err)
			return
		}
		c.Set(KeyUserID, id.UserID)
		c.Set(KeyUsername, id.Username)
		c.Next()
	}
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// UserID is the authenticated caller; empty outside AuthJWT groups.
func UserID(c *gin.Context) string { return c.GetString(KeyUserID) }
