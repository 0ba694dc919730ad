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

type authService interface {
	RegisterTeacher(ctx context.Context, req dto.RegisterTeacherRequest) (*models.Teacher, error)
	LoginTeacher(ctx context.Context, req dto.TeacherLoginRequest) (*models.LoginResponse, error)
	JoinClassroom(ctx context.Context, req dto.JoinClassroomRequest) (*models.LoginResponse, error)
	LoginStudent(ctx context.Context, req dto.StudentLoginRequest) (*models.LoginResponse, error)
}

// AuthHandler exposes registration and login endpoints for both roles.
type AuthHandler struct {
	service authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// RegisterTeacher godoc
// @Summary Register a teacher account
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.RegisterTeacherRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /auth/teachers/register [post]
func (h *AuthHandler) RegisterTeacher(c *gin.Context) {
	var req dto.RegisterTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}
	teacher, err := h.service.RegisterTeacher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, teacher, nil)
}

// LoginTeacher godoc
// @Summary Teacher login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.TeacherLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Router /auth/teachers/login [post]
func (h *AuthHandler) LoginTeacher(c *gin.Context) {
	var req dto.TeacherLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}
	login, err := h.service.LoginTeacher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, login, nil)
}

// JoinClassroom godoc
// @Summary Join a classroom with a code, name and PIN
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.JoinClassroomRequest true "Join payload"
// @Success 201 {object} response.Envelope
// @Router /auth/students/join [post]
func (h *AuthHandler) JoinClassroom(c *gin.Context) {
	var req dto.JoinClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid join payload"))
		return
	}
	login, err := h.service.JoinClassroom(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, login, nil)
}

// LoginStudent godoc
// @Summary Student login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.StudentLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Router /auth/students/login [post]
func (h *AuthHandler) LoginStudent(c *gin.Context) {
	var req dto.StudentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}
	login, err := h.service.LoginStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, login, nil)
}
