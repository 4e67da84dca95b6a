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

type progressUpdater interface {
	Update(ctx context.Context, studentID, courseID string, req dto.UpdateProgressRequest) (*service.ProgressOutcome, error)
}

// ProgressHandler exposes manual progress updates.
type ProgressHandler struct {
	progress progressUpdater
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress progressUpdater) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Update godoc
// @Summary Update course progress
// @Description Values lower than the stored progress are ignored.
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param payload body dto.UpdateProgressRequest true "Progress percentage"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student/courses/{courseId}/progress [put]
func (h *ProgressHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.progress.Update(c.Request.Context(), claims.UserID, c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UpdateProgressResponse{
		Success:        true,
		Progress:       outcome.Enrollment.Progress,
		Completed:      outcome.Enrollment.Completed,
		CertificateURL: certificateURL(outcome.Certificate),
	}, nil)
}
