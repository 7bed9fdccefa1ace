package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
	"github.com/hearthschool/hub-api/pkg/response"
)

func forbid(c *gin.Context, err *appErrors.Error) {
	response.Error(c, err)
	c.Abort()
}

// RBAC enforces role-based access control for routes. Besides role names it
// understands "SELF", which admits a student account whose linked student
// profile matches the :studentId route parameter. Finer ownership checks
// (parent-to-child) live in the services where the data is loaded anyway.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			forbid(c, appErrors.ErrUnauthorized)
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && claims.StudentID != nil {
			if target := c.Param("studentId"); target != "" && target == *claims.StudentID {
				c.Next()
				return
			}
		}
		forbid(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
