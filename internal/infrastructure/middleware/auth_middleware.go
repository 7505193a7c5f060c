package middleware

import (
	"strings"

	"weylus/internal/core/services"
	"weylus/pkg/errors"
	"weylus/pkg/result"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires a control API bearer token. A nil authService
// disables the check.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	appErr := errors.NewUnauthorizedError(message)
	c.AbortWithStatusJSON(appErr.HTTPStatus, result.Error[struct{}](appErr, message))
}
