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

type marketService interface {
	CreateItem(ctx context.Context, classroomID string, req dto.CreateItemRequest) (*models.MarketItem, error)
	ListItems(ctx context.Context, classroomID string, activeOnly bool) ([]models.MarketItem, error)
	UpdateItem(ctx context.Context, classroomID, itemID string, req dto.UpdateItemRequest) (*models.MarketItem, error)
	Contribute(ctx context.Context, classroomID, studentID, itemID string, req dto.ContributeRequest) (*models.MarketItem, error)
}

type pricingService interface {
	RecalculatePrices(ctx context.Context, classroomID string) ([]models.PriceAdjustment, error)
}

// MarketHandler exposes the reward catalog and pricing endpoints.
type MarketHandler struct {
	market     marketService
	pricing    pricingService
	classrooms classroomGuard
}

// NewMarketHandler constructs the handler.
func NewMarketHandler(market marketService, pricing pricingService, classrooms classroomGuard) *MarketHandler {
	return &MarketHandler{market: market, pricing: pricing, classrooms: classrooms}
}

// CreateItem godoc
// @Summary Add an item to the classroom market
// @Tags Market
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/items [post]
func (h *MarketHandler) CreateItem(c *gin.Context) {
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
	var req dto.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid item payload"))
		return
	}
	item, err := h.market.CreateItem(c.Request.Context(), classroomID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, item, nil)
}

// ListItems godoc
// @Summary List market items
// @Tags Market
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/items [get]
func (h *MarketHandler) ListItems(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	// students only see active items in their own classroom
	activeOnly := claims.Role == models.RoleStudent
	if activeOnly && claims.ClassroomID != classroomID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	items, err := h.market.ListItems(c.Request.Context(), classroomID, activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UpdateItem godoc
// @Summary Edit a market item
// @Tags Market
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param itemId path string true "Item ID"
// @Param payload body dto.UpdateItemRequest true "Item payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/items/{itemId} [put]
func (h *MarketHandler) UpdateItem(c *gin.Context) {
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
	var req dto.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid item payload"))
		return
	}
	item, err := h.market.UpdateItem(c.Request.Context(), classroomID, c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Contribute godoc
// @Summary Contribute coins to a collective goal
// @Tags Market
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param itemId path string true "Item ID"
// @Param payload body dto.ContributeRequest true "Contribution payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/items/{itemId}/contributions [post]
func (h *MarketHandler) Contribute(c *gin.Context) {
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
	var req dto.ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid contribution payload"))
		return
	}
	item, err := h.market.Contribute(c.Request.Context(), classroomID, claims.StudentID, c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// RecalculatePrices godoc
// @Summary Run a dynamic pricing pass
// @Tags Market
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/pricing/recalculate [post]
func (h *MarketHandler) RecalculatePrices(c *gin.Context) {
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
	adjustments, err := h.pricing.RecalculatePrices(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, adjustments, nil)
}
