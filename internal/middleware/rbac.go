package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

// ContextPermissionsKey is the gin context key storing the resolved permission set.
const ContextPermissionsKey = "permissions"

type permissionLoader interface {
	ForUser(ctx context.Context, userID string) (models.Permissions, bool, error)
}

// LoadPermissions resolves the caller's permission set once per request from the
// session cache. It must run after JWT.
func LoadPermissions(loader permissionLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		perms, hit, err := loader.ForUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		SetCacheHit(c, hit)
		c.Set(ContextPermissionsKey, perms)
		c.Next()
	}
}

// Permissions returns the permission set loaded by LoadPermissions.
func Permissions(c *gin.Context) (models.Permissions, bool) {
	value, exists := c.Get(ContextPermissionsKey)
	if !exists {
		return models.Permissions{}, false
	}
	perms, ok := value.(models.Permissions)
	return perms, ok
}

// RequireCapabilities allows the request when the caller holds any of caps.
func RequireCapabilities(caps ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := Permissions(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !perms.HasAny(caps...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
