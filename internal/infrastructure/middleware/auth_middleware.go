package middleware

import (
	"errors"
	"strings"

	"finsite/internal/core/services"
	apperrors "finsite/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	SubjectKey = "subject"
	claimsKey  = "claims"
)

// RequireScope accepts a bearer token that carries scope. With auth
// disabled it lets every request through. Rejections are rendered by
// ErrorHandlerMiddleware.
func RequireScope(authService services.AuthService, enabled bool, scope string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			reject(c, apperrors.NewUnauthorizedError("authorization header required"))
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			reject(c, apperrors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			msg := services.ErrInvalidToken.Error()
			if errors.Is(err, services.ErrExpiredToken) {
				msg = services.ErrExpiredToken.Error()
			}
			reject(c, apperrors.NewUnauthorizedError(msg))
			return
		}

		if !claims.HasScope(scope) {
			reject(c, apperrors.NewForbiddenError(services.ErrMissingScope.Error()))
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func reject(c *gin.Context, err *apperrors.AppError) {
	_ = c.Error(err)
	c.Abort()
}
