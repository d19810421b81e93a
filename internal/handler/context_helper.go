package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/middleware"
	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorID returns the authenticated user id, writing a 401 when absent.
func actorID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

// bindJSON decodes the request body, writing a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Invalid(err, message))
		return false
	}
	return true
}
