package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/response"
)

type approvalService interface {
	SubmitPurchase(ctx context.Context, classroomID, studentID string, req dto.SubmitPurchaseRequest) (*models.PurchaseRequest, error)
	ApprovePurchase(ctx context.Context, teacherID, requestID string) (*models.PurchaseRequest, error)
	RejectPurchase(ctx context.Context, teacherID, requestID string, req dto.RejectRequest) (*models.PurchaseRequest, error)
	CancelPurchase(ctx context.Context, studentID, requestID string) (*models.PurchaseRequest, error)
	ListPurchases(ctx context.Context, filter models.RequestFilter) ([]models.PurchaseRequest, error)
	SubmitTransfer(ctx context.Context, classroomID, studentID string, req dto.SubmitTransferRequest) (*models.TransferRequest, error)
	ApproveTransfer(ctx context.Context, teacherID, requestID string) (*models.TransferRequest, error)
	RejectTransfer(ctx context.Context, teacherID, requestID string, req dto.RejectRequest) (*models.TransferRequest, error)
	CancelTransfer(ctx context.Context, studentID, requestID string) (*models.TransferRequest, error)
	ListTransfers(ctx context.Context, filter models.RequestFilter) ([]models.TransferRequest, error)
}

// RequestHandler exposes the purchase and transfer approval workflows.
type RequestHandler struct {
	approvals  approvalService
	classrooms classroomGuard
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(approvals approvalService, classrooms classroomGuard) *RequestHandler {
	return &RequestHandler{approvals: approvals, classrooms: classrooms}
}

func (h *RequestHandler) filterFromQuery(c *gin.Context, claims *models.JWTClaims, classroomID string) models.RequestFilter {
	filter := models.RequestFilter{ClassroomID: classroomID}
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.StudentID
	}
	if raw := c.Query("status"); raw != "" {
		filter.Status = models.RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	}
	return filter
}

// SubmitPurchase godoc
// @Summary Submit a purchase request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.SubmitPurchaseRequest true "Purchase payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/purchase-requests [post]
func (h *RequestHandler) SubmitPurchase(c *gin.Context) {
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
	var req dto.SubmitPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid purchase payload"))
		return
	}
	request, err := h.approvals.SubmitPurchase(c.Request.Context(), classroomID, claims.StudentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// ListPurchases godoc
// @Summary List purchase requests
// @Tags Requests
// @Produce json
// @Param id path string true "Classroom ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/purchase-requests [get]
func (h *RequestHandler) ListPurchases(c *gin.Context) {
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
	requests, err := h.approvals.ListPurchases(c.Request.Context(), h.filterFromQuery(c, claims, classroomID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ApprovePurchase godoc
// @Summary Approve and settle a purchase request
// @Tags Requests
// @Produce json
// @Param requestId path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /purchase-requests/{requestId}/approve [post]
func (h *RequestHandler) ApprovePurchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.approvals.ApprovePurchase(c.Request.Context(), claims.TeacherID, c.Param("requestId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// RejectPurchase godoc
// @Summary Reject a purchase request
// @Tags Requests
// @Accept json
// @Produce json
// @Param requestId path string true "Request ID"
// @Param payload body dto.RejectRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /purchase-requests/{requestId}/reject [post]
func (h *RequestHandler) RejectPurchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	request, err := h.approvals.RejectPurchase(c.Request.Context(), claims.TeacherID, c.Param("requestId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// CancelPurchase godoc
// @Summary Cancel an own pending purchase request
// @Tags Requests
// @Produce json
// @Param requestId path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /purchase-requests/{requestId}/cancel [post]
func (h *RequestHandler) CancelPurchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.approvals.CancelPurchase(c.Request.Context(), claims.StudentID, c.Param("requestId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// SubmitTransfer godoc
// @Summary Submit a peer transfer request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.SubmitTransferRequest true "Transfer payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/transfer-requests [post]
func (h *RequestHandler) SubmitTransfer(c *gin.Context) {
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
	var req dto.SubmitTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transfer payload"))
		return
	}
	request, err := h.approvals.SubmitTransfer(c.Request.Context(), classroomID, claims.StudentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// ListTransfers godoc
// @Summary List transfer requests
// @Tags Requests
// @Produce json
// @Param id path string true "Classroom ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/transfer-requests [get]
func (h *RequestHandler) ListTransfers(c *gin.Context) {
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
	requests, err := h.approvals.ListTransfers(c.Request.Context(), h.filterFromQuery(c, claims, classroomID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ApproveTransfer godoc
// @Summary Approve and settle a transfer request
// @Tags Requests
// @Produce json
// @Param requestId path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /transfer-requests/{requestId}/approve [post]
func (h *RequestHandler) ApproveTransfer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.approvals.ApproveTransfer(c.Request.Context(), claims.TeacherID, c.Param("requestId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// RejectTransfer godoc
// @Summary Reject a transfer request
// @Tags Requests
// @Accept json
// @Produce json
// @Param requestId path string true "Request ID"
// @Param payload body dto.RejectRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /transfer-requests/{requestId}/reject [post]
func (h *RequestHandler) RejectTransfer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	request, err := h.approvals.RejectTransfer(c.Request.Context(), claims.TeacherID, c.Param("requestId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// CancelTransfer godoc
// @Summary Cancel an own pending transfer request
// @Tags Requests
// @Produce json
// @Param requestId path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /transfer-requests/{requestId}/cancel [post]
func (h *RequestHandler) CancelTransfer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.approvals.CancelTransfer(c.Request.Context(), claims.StudentID, c.Param("requestId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
