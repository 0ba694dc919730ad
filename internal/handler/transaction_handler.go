package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/response"
)

type ledgerQueryService interface {
	Wallet(ctx context.Context, studentID string) (*models.Wallet, error)
	History(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, *models.Pagination, error)
	Leaderboard(ctx context.Context, classroomID string, limit int) ([]models.LeaderboardEntry, error)
}

type memberClassrooms interface {
	GetForMember(ctx context.Context, classroomID string) (*models.Classroom, error)
}

// TransactionHandler exposes wallet, history and leaderboard endpoints.
type TransactionHandler struct {
	ledger     ledgerQueryService
	classrooms classroomGuard
	members    memberClassrooms
}

// NewTransactionHandler constructs the handler.
func NewTransactionHandler(ledger ledgerQueryService, classrooms classroomGuard, members memberClassrooms) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, classrooms: classrooms, members: members}
}

func historyFilter(c *gin.Context, classroomID string) models.TransactionFilter {
	filter := models.TransactionFilter{ClassroomID: classroomID}
	filter.WalletID = c.Query("wallet_id")
	if raw := c.Query("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				filter.Types = append(filter.Types, models.TransactionType(part))
			}
		}
	}
	if raw := c.Query("since"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = &ts
		}
	}
	if raw := c.Query("until"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Until = &ts
		}
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))
	return filter
}

// MyWallet godoc
// @Summary Get the caller's wallet
// @Tags Transactions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /wallet [get]
func (h *TransactionHandler) MyWallet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	wallet, err := h.ledger.Wallet(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wallet, nil)
}

// History godoc
// @Summary List classroom transactions
// @Tags Transactions
// @Produce json
// @Param id path string true "Classroom ID"
// @Param wallet_id query string false "Filter by wallet"
// @Param types query string false "Comma-separated transaction types"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/transactions [get]
func (h *TransactionHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classroomID := c.Param("id")
	filter := historyFilter(c, classroomID)
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
		// students only see their own wallet history
		wallet, err := h.ledger.Wallet(c.Request.Context(), claims.StudentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.WalletID = wallet.ID
	}
	records, pagination, err := h.ledger.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Leaderboard godoc
// @Summary Ranked wallet balances for a classroom
// @Tags Transactions
// @Produce json
// @Param id path string true "Classroom ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/leaderboard [get]
func (h *TransactionHandler) Leaderboard(c *gin.Context) {
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
		if !classroom.Settings.ShowLeaderboard {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.ledger.Leaderboard(c.Request.Context(), classroomID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
