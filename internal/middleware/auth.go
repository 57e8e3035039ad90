package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ataryouth/internal/apperror"
	"ataryouth/internal/security"
)

const claimsKey = "access_claims"

// Authenticator validates a bearer token and returns its claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*security.AccessClaims, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*security.AccessClaims, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*security.AccessClaims, error) {
	return f(ctx, token)
}

func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		tokenStr = strings.TrimSpace(tokenStr)
		if !ok || tokenStr == "" {
			abort(c, http.StatusUnauthorized, "Access token required")
			return
		}

		claims, err := authn.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			kind := apperror.KindOf(err)
			abort(c, apperror.Status(kind), apperror.MessageOf(err, "Internal server error"))
			return
		}

		c.Set(claimsKey, *claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Auth.
func ClaimsFrom(c *gin.Context) (security.AccessClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return security.AccessClaims{}, false
	}
	claims, ok := v.(security.AccessClaims)
	return claims, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
