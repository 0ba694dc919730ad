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

type streakService interface {
	RecordActivity(ctx context.Context, classroomID string, req dto.RecordActivityRequest) (*models.StreakResult, error)
	StudentStreaks(ctx context.Context, studentID string) ([]models.StudentStreak, error)
	Rewards(ctx context.Context, classroomID string) ([]models.StreakReward, error)
}

type badgeService interface {
	CreateBadge(ctx context.Context, classroomID string, req dto.CreateBadgeRequest) (*models.Badge, error)
	ListBadges(ctx context.Context, classroomID string) ([]models.Badge, error)
	StudentBadges(ctx context.Context, studentID string) ([]models.StudentBadge, error)
	AwardManual(ctx context.Context, classroomID, studentID, badgeID string) (*models.StudentBadge, error)
}

// StreakHandler exposes streak tracking and badge endpoints.
type StreakHandler struct {
	streaks    streakService
	badges     badgeService
	classrooms classroomGuard
}

// NewStreakHandler constructs the handler.
func NewStreakHandler(streaks streakService, badges badgeService, classrooms classroomGuard) *StreakHandler {
	return &StreakHandler{streaks: streaks, badges: badges, classrooms: classrooms}
}

// RecordActivity godoc
// @Summary Record a student activity for streak tracking
// @Tags Streaks
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.RecordActivityRequest true "Activity payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/streaks/activities [post]
func (h *StreakHandler) RecordActivity(c *gin.Context) {
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
	var req dto.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid activity payload"))
		return
	}
	result, err := h.streaks.RecordActivity(c.Request.Context(), classroomID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MyStreaks godoc
// @Summary List the caller's streaks
// @Tags Streaks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /streaks [get]
func (h *StreakHandler) MyStreaks(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	streaks, err := h.streaks.StudentStreaks(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, streaks, nil)
}

// Rewards godoc
// @Summary List streak milestone rewards
// @Tags Streaks
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/streaks/rewards [get]
func (h *StreakHandler) Rewards(c *gin.Context) {
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
	rewards, err := h.streaks.Rewards(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rewards, nil)
}

// CreateBadge godoc
// @Summary Define a badge
// @Tags Badges
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.CreateBadgeRequest true "Badge payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/badges [post]
func (h *StreakHandler) CreateBadge(c *gin.Context) {
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
	var req dto.CreateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid badge payload"))
		return
	}
	badge, err := h.badges.CreateBadge(c.Request.Context(), classroomID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, badge, nil)
}

// ListBadges godoc
// @Summary List classroom badges
// @Tags Badges
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/badges [get]
func (h *StreakHandler) ListBadges(c *gin.Context) {
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
	badges, err := h.badges.ListBadges(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}

// MyBadges godoc
// @Summary List the caller's unlocked badges
// @Tags Badges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *StreakHandler) MyBadges(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	badges, err := h.badges.StudentBadges(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}

// AwardBadge godoc
// @Summary Manually award a badge to a student
// @Tags Badges
// @Produce json
// @Param id path string true "Classroom ID"
// @Param badgeId path string true "Badge ID"
// @Param studentId path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/badges/{badgeId}/students/{studentId} [post]
func (h *StreakHandler) AwardBadge(c *gin.Context) {
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
	awarded, err := h.badges.AwardManual(c.Request.Context(), classroomID, c.Param("studentId"), c.Param("badgeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, awarded, nil)
}
