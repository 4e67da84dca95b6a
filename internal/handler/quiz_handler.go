package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/service"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

type quizSubmitter interface {
	Submit(ctx context.Context, sub service.QuizSubmission) (*service.QuizOutcome, error)
}

// QuizHandler exposes quiz submission endpoints.
type QuizHandler struct {
	quizzes quizSubmitter
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes quizSubmitter) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// SubmitLegacy godoc
// @Summary Submit quiz answers (legacy)
// @Description Unauthenticated variant. When a bearer token is sent it must belong to studentId.
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body dto.LegacySubmitQuizRequest true "Quiz submission"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /student/submit-quiz [post]
func (h *QuizHandler) SubmitLegacy(c *gin.Context) {
	var req dto.LegacySubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.UserID != req.StudentID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token does not belong to studentId"))
		return
	}

	outcome, err := h.quizzes.Submit(c.Request.Context(), service.QuizSubmission{
		StudentID:     req.StudentID,
		CourseID:      req.CourseID,
		ContentItemID: req.ContentItemID,
		Answers:       req.Answers,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LegacySubmitQuizResponse{
		Success:        true,
		Score:          outcome.Grade.Score,
		Passed:         outcome.Grade.Passed,
		TotalQuestions: outcome.Grade.Total,
		CorrectAnswers: outcome.Grade.Correct,
		CertificateURL: certificateURL(outcome.Certificate),
	}, nil)
}

// Submit godoc
// @Summary Submit quiz answers
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param contentId path string true "Content item ID"
// @Param payload body dto.SubmitQuizRequest true "Answers in question order"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /student/courses/{courseId}/content/{contentId}/submit-quiz [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	outcome, err := h.quizzes.Submit(c.Request.Context(), service.QuizSubmission{
		StudentID:     claims.UserID,
		CourseID:      c.Param("courseId"),
		ContentItemID: c.Param("contentId"),
		Answers:       req.Answers,
		RequireArray:  true,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	results := make([]dto.QuestionResult, 0, len(outcome.Grade.Results))
	for _, r := range outcome.Grade.Results {
		results = append(results, dto.QuestionResult{
			QuestionID: r.QuestionID,
			Index:      r.Index,
			IsCorrect:  r.IsCorrect,
			Submitted:  r.Submitted,
		})
	}
	response.JSON(c, http.StatusOK, dto.SubmitQuizResponse{
		Success:        true,
		Score:          outcome.Grade.Score,
		Passed:         outcome.Grade.Passed,
		TotalQuestions: outcome.Grade.Total,
		CorrectAnswers: outcome.Grade.Correct,
		Results:        results,
		Progress:       outcome.Enrollment.Progress,
		Completed:      outcome.Enrollment.Completed,
		CertificateURL: certificateURL(outcome.Certificate),
	}, nil)
}

func certificateURL(cert *models.Certificate) *string {
	if cert == nil || cert.URL == "" {
		return nil
	}
	url := cert.URL
	return &url
}
