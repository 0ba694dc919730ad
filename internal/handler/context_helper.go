package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/middleware"
	"github.com/noah-isme/classbank-api/internal/models"
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

// classroomGuard confirms a teacher owns the classroom they operate on.
type classroomGuard interface {
	Get(ctx context.Context, teacherID, classroomID string) (*models.Classroom, error)
}
