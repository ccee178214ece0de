// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"parking-service/internal/pkg/jwt"
	"parking-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ctxOperatorID = "operator_id"
	ctxUsername   = "username"
	ctxRole       = "role"
	ctxJTI        = "jti"
	ctxExpiresAt  = "token_expires_at"
)

// TokenValidator is satisfied by the auth service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

// Auth validates the bearer token and stores the operator identity on the context
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set(ctxOperatorID, claims.OperatorID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ctxExpiresAt, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// RequireRole requires the operator to hold one of the given roles.
// MUST be used after Auth()
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "no role found - authentication required", nil)
			return
		}

		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions", nil, gin.H{
			"required_roles": roles,
			"role":           role,
		})
	}
}

// WithRole chains Auth and RequireRole.
func (m *AuthMiddleware) WithRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(roles...),
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// browsers cannot set headers on websocket upgrades
	return c.Query("token")
}

// GetOperatorID returns the authenticated operator id.
func GetOperatorID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ctxOperatorID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func GetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxRole)
	if !exists {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxJTI)
	if !exists {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

// GetTokenExpiry returns when the caller's token expires.
func GetTokenExpiry(c *gin.Context) (time.Time, bool) {
	v, exists := c.Get(ctxExpiresAt)
	if !exists {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}
