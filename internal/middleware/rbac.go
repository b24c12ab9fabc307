package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/response"
)

// RequireRoles admits only the listed roles. Must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ReadAccess admits every operator role.
func ReadAccess() gin.HandlerFunc {
	return RequireRoles(models.Roles...)
}

// WriteAccess admits roles allowed to change the roster.
func WriteAccess() gin.HandlerFunc {
	var writers []models.UserRole
	for _, r := range models.Roles {
		if r.CanWrite() {
			writers = append(writers, r)
		}
	}
	return RequireRoles(writers...)
}
