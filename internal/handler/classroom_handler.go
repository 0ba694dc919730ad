package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/response"
)

type classroomService interface {
	Create(ctx context.Context, teacherID string, req dto.CreateClassroomRequest) (*models.Classroom, error)
	Get(ctx context.Context, teacherID, classroomID string) (*models.Classroom, error)
	GetForMember(ctx context.Context, classroomID string) (*models.Classroom, error)
	List(ctx context.Context, teacherID string) ([]models.Classroom, error)
	UpdateSettings(ctx context.Context, teacherID, classroomID string, req dto.UpdateSettingsRequest) (*models.Classroom, error)
	Roster(ctx context.Context, classroomID string) ([]models.StudentWithBalance, error)
	RemoveStudent(ctx context.Context, teacherID, classroomID, studentID string) error
}

type awardService interface {
	Award(ctx context.Context, classroomID, teacherID string, req dto.AwardRequest) ([]models.Transaction, error)
	Refund(ctx context.Context, classroomID, teacherID string, req dto.RefundRequest) (*models.Transaction, error)
}

// ClassroomHandler exposes classroom lifecycle and treasury endpoints.
type ClassroomHandler struct {
	classrooms classroomService
	ledger     awardService
}

// NewClassroomHandler constructs the handler.
func NewClassroomHandler(classrooms classroomService, ledger awardService) *ClassroomHandler {
	return &ClassroomHandler{classrooms: classrooms, ledger: ledger}
}

// Create godoc
// @Summary Open a new classroom economy
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid classroom payload"))
		return
	}
	classroom, err := h.classrooms.Create(c.Request.Context(), claims.TeacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, classroom, nil)
}

// List godoc
// @Summary List the teacher's classrooms
// @Tags Classrooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classrooms, err := h.classrooms.List(c.Request.Context(), claims.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classrooms, nil)
}

// Get godoc
// @Summary Get classroom detail
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	if claims.Role == models.RoleStudent {
		if claims.ClassroomID != classroomID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		classroom, err := h.classrooms.GetForMember(c.Request.Context(), classroomID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, classroom, nil)
		return
	}
	classroom, err := h.classrooms.Get(c.Request.Context(), claims.TeacherID, classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// UpdateSettings godoc
// @Summary Update classroom settings
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.UpdateSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/settings [put]
func (h *ClassroomHandler) UpdateSettings(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid settings payload"))
		return
	}
	classroom, err := h.classrooms.UpdateSettings(c.Request.Context(), claims.TeacherID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// Roster godoc
// @Summary List classroom members with balances
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/students [get]
func (h *ClassroomHandler) Roster(c *gin.Context) {
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
	} else if claims.ClassroomID != classroomID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	roster, err := h.classrooms.Roster(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// RemoveStudent godoc
// @Summary Deactivate a classroom member
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Param studentId path string true "Student ID"
// @Success 204 "No Content"
// @Router /classrooms/{id}/students/{studentId} [delete]
func (h *ClassroomHandler) RemoveStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.classrooms.RemoveStudent(c.Request.Context(), claims.TeacherID, c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Award godoc
// @Summary Award treasury coins to students
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.AwardRequest true "Award payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/awards [post]
func (h *ClassroomHandler) Award(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	if _, err := h.classrooms.Get(c.Request.Context(), claims.TeacherID, classroomID); err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid award payload"))
		return
	}
	records, err := h.ledger.Award(c.Request.Context(), classroomID, claims.TeacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, records, nil)
}

// Refund godoc
// @Summary Refund treasury coins to a student
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.RefundRequest true "Refund payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/refunds [post]
func (h *ClassroomHandler) Refund(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	if _, err := h.classrooms.Get(c.Request.Context(), claims.TeacherID, classroomID); err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid refund payload"))
		return
	}
	record, err := h.ledger.Refund(c.Request.Context(), classroomID, claims.TeacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}
