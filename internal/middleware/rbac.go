package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/response"
)

// RequireRole blocks requests whose token role is not in the allowed set.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, role := range allowed {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// TeacherOnly restricts a route to teacher tokens.
func TeacherOnly() gin.HandlerFunc {
	return RequireRole(models.RoleTeacher)
}

// StudentOnly restricts a route to student tokens.
func StudentOnly() gin.HandlerFunc {
	return RequireRole(models.RoleStudent)
}
