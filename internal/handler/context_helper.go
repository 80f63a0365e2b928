package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/prashnakosh-api/internal/middleware"
	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/internal/service"
	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// effectiveSchool resolves the tenant for this request: the caller's own
// school, or for super admins the one named by the acting-school header.
// Missing claims mean the route was registered without the JWT middleware;
// that answers 401 rather than panicking on the nil dereference.
func effectiveSchool(c *gin.Context, scope *service.ScopeService) (*models.JWTClaims, string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	school, err := scope.EffectiveSchool(claims, c.GetHeader(middleware.ActingSchoolHeader))
	if err != nil {
		return nil, "", err
	}
	return claims, school, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
