package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ataryouth/internal/models"
)

func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Access token required")
			return
		}

		if _, ok := roleSet[models.UserRole(claims.Role)]; !ok {
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}

		c.Next()
	}
}
