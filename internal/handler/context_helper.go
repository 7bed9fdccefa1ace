package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/middleware"
	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/internal/service"
	"github.com/hearthschool/hub-api/pkg/sanitize"
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

func actorFromContext(c *gin.Context) service.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role, StudentID: claims.StudentID}
}

// pathID reads a route parameter and strips anything that cannot be part of
// a UUID before it reaches a query.
func pathID(c *gin.Context, name string) string {
	return sanitize.ID(c.Param(name))
}
