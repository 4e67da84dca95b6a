package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, studentID, courseID string) (*models.EnrollmentOverview, error)
	AddToWishlist(ctx context.Context, studentID, courseID string) error
	RemoveFromWishlist(ctx context.Context, studentID, courseID string) error
	Wishlist(ctx context.Context, studentID string) ([]models.WishlistItem, error)
}

// EnrollmentHandler exposes the student's enrollment and wishlist endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll in a course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /student/courses/{courseId}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), claims.UserID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary List my enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param completed query bool false "Filter by completion"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /student/courses [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.EnrollmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), models.EnrollmentFilter{
		StudentID: claims.UserID,
		Completed: query.Completed,
		Page:      query.Page,
		PageSize:  query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get my enrollment in a course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student/courses/{courseId} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	overview, err := h.enrollments.Get(c.Request.Context(), claims.UserID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// AddToWishlist godoc
// @Summary Bookmark a course
// @Tags Wishlist
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 204
// @Router /student/wishlist/{courseId} [post]
func (h *EnrollmentHandler) AddToWishlist(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.enrollments.AddToWishlist(c.Request.Context(), claims.UserID, c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveFromWishlist godoc
// @Summary Remove a bookmark
// @Tags Wishlist
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /student/wishlist/{courseId} [delete]
func (h *EnrollmentHandler) RemoveFromWishlist(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.enrollments.RemoveFromWishlist(c.Request.Context(), claims.UserID, c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Wishlist godoc
// @Summary List bookmarked courses
// @Tags Wishlist
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/wishlist [get]
func (h *EnrollmentHandler) Wishlist(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.enrollments.Wishlist(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	response.JSON(c, http.StatusOK, items, nil)
}
