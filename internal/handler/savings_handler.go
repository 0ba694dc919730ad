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

type savingsService interface {
	CreateRate(ctx context.Context, classroomID string, req dto.CreateRateRequest) (*models.SavingsRate, error)
	ListRates(ctx context.Context, classroomID string) ([]models.SavingsRate, error)
	DeactivateRate(ctx context.Context, classroomID, rateID string) error
	OpenAccount(ctx context.Context, classroomID, studentID string, req dto.OpenAccountRequest) (*models.SavingsAccount, error)
	Withdraw(ctx context.Context, studentID, accountID string) (*models.SavingsAccount, error)
	StudentAccounts(ctx context.Context, studentID string) ([]models.SavingsAccount, error)
}

// SavingsHandler exposes term deposit rates and accounts.
type SavingsHandler struct {
	savings    savingsService
	classrooms classroomGuard
}

// NewSavingsHandler constructs the handler.
func NewSavingsHandler(savings savingsService, classrooms classroomGuard) *SavingsHandler {
	return &SavingsHandler{savings: savings, classrooms: classrooms}
}

// CreateRate godoc
// @Summary Publish a savings rate tier
// @Tags Savings
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.CreateRateRequest true "Rate payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/savings/rates [post]
func (h *SavingsHandler) CreateRate(c *gin.Context) {
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
	var req dto.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rate payload"))
		return
	}
	rate, err := h.savings.CreateRate(c.Request.Context(), classroomID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, rate, nil)
}

// ListRates godoc
// @Summary List active savings rate tiers
// @Tags Savings
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/savings/rates [get]
func (h *SavingsHandler) ListRates(c *gin.Context) {
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
	rates, err := h.savings.ListRates(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// DeactivateRate godoc
// @Summary Retire a savings rate tier
// @Tags Savings
// @Produce json
// @Param id path string true "Classroom ID"
// @Param rateId path string true "Rate ID"
// @Success 204 "No Content"
// @Router /classrooms/{id}/savings/rates/{rateId} [delete]
func (h *SavingsHandler) DeactivateRate(c *gin.Context) {
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
	if err := h.savings.DeactivateRate(c.Request.Context(), classroomID, c.Param("rateId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// OpenAccount godoc
// @Summary Open a term deposit
// @Tags Savings
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.OpenAccountRequest true "Deposit payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/savings/accounts [post]
func (h *SavingsHandler) OpenAccount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	if claims.ClassroomID != classroomID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deposit payload"))
		return
	}
	account, err := h.savings.OpenAccount(c.Request.Context(), classroomID, claims.StudentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, account, nil)
}

// Withdraw godoc
// @Summary Withdraw a term deposit (with interest once matured)
// @Tags Savings
// @Produce json
// @Param accountId path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Router /savings/accounts/{accountId}/withdraw [post]
func (h *SavingsHandler) Withdraw(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	account, err := h.savings.Withdraw(c.Request.Context(), claims.StudentID, c.Param("accountId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// MyAccounts godoc
// @Summary List the caller's deposits
// @Tags Savings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /savings/accounts [get]
func (h *SavingsHandler) MyAccounts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	accounts, err := h.savings.StudentAccounts(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, nil)
}
