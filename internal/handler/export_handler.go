package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/service"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

type progressExporter interface {
	CourseProgress(ctx context.Context, who service.Requester, courseID, format string) (*service.ExportFile, error)
}

// ExportHandler serves course progress exports to teachers and admins.
type ExportHandler struct {
	exports progressExporter
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports progressExporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// CourseProgress godoc
// @Summary Export course progress
// @Tags Exports
// @Produce octet-stream
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param format query string false "csv, xlsx or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{courseId}/progress/export [get]
func (h *ExportHandler) CourseProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.ProgressExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exports.CourseProgress(c.Request.Context(), service.Requester{UserID: claims.UserID, Role: claims.Role}, c.Param("courseId"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
