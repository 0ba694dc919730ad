package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/response"
)

type exportService interface {
	GenerateStatement(ctx context.Context, classroomID string, req dto.StatementRequest) (*dto.StatementResponse, error)
	Open(token string) (*os.File, string, error)
}

// ExportHandler exposes statement generation and signed downloads.
type ExportHandler struct {
	exports    exportService
	classrooms classroomGuard
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService, classrooms classroomGuard) *ExportHandler {
	return &ExportHandler{exports: exports, classrooms: classrooms}
}

// GenerateStatement godoc
// @Summary Generate a wallet statement export
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.StatementRequest true "Statement payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/exports/statements [post]
func (h *ExportHandler) GenerateStatement(c *gin.Context) {
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
	var req dto.StatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid statement payload"))
		return
	}
	// students can only export their own statement
	if claims.Role == models.RoleStudent && req.StudentID != claims.StudentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	statement, err := h.exports.GenerateStatement(c.Request.Context(), classroomID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, statement, nil)
}

// Download godoc
// @Summary Download a generated export
// @Description The signed token in the path is the sole credential.
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, name, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not stat export file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
