// internal/middleware/helpers.go
package middleware

import (
	"parking-service/internal/domain/auth"

	"github.com/gin-gonic/gin"
)

// MustGetOperatorID gets the operator id from context or panics
func MustGetOperatorID(c *gin.Context) int64 {
	id, exists := GetOperatorID(c)
	if !exists {
		panic("operator_id not found in context")
	}
	return id
}

// GetUsername gets the operator username from context
func GetUsername(c *gin.Context) string {
	v, exists := c.Get(ctxUsername)
	if !exists {
		return ""
	}
	username, _ := v.(string)
	return username
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxOperatorID)
	return exists
}

// IsAdmin checks if the operator is an administrator
func IsAdmin(c *gin.Context) bool {
	role, _ := GetRole(c)
	return role == auth.RoleAdministrator
}
