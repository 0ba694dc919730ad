package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/response"
)

type indicatorService interface {
	Compute(ctx context.Context, classroomID string) (*models.EconomicIndicators, error)
}

// IndicatorHandler exposes the economic health dashboard.
type IndicatorHandler struct {
	indicators indicatorService
	classrooms classroomGuard
	members    memberClassrooms
}

// NewIndicatorHandler constructs the handler.
func NewIndicatorHandler(indicators indicatorService, classrooms classroomGuard, members memberClassrooms) *IndicatorHandler {
	return &IndicatorHandler{indicators: indicators, classrooms: classrooms, members: members}
}

// Dashboard godoc
// @Summary Economic indicators for a classroom
// @Tags Indicators
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/indicators [get]
func (h *IndicatorHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	if claims.Role == models.RoleTeacher {
		if _, err := h.classrooms.Get(c.Request.Context(), claims.TeacherID, classroomID); err != nil {
			response.Error(c, err)
			return
		}
	} else {
		if claims.ClassroomID != classroomID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		classroom, err := h.members.GetForMember(c.Request.Context(), classroomID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !classroom.Settings.ShowIndicators {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
	indicators, err := h.indicators.Compute(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, indicators, nil)
}
