package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListContentProgress(ctx context.Context, enrollmentID string) ([]models.ContentProgress, error)
	ListAttempts(ctx context.Context, enrollmentID string) ([]models.QuizAttempt, error)
	Touch(ctx context.Context, enrollmentID string, at time.Time) error
}

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	AddToWishlist(ctx context.Context, studentID, courseID string) error
	RemoveFromWishlist(ctx context.Context, studentID, courseID string) (bool, error)
	ListWishlist(ctx context.Context, studentID string) ([]models.WishlistItem, error)
}

type courseDefinitions interface {
	Definition(ctx context.Context, courseID string) (*models.CourseDefinition, error)
}

type certificateLister interface {
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error)
}

// EnrollmentService orchestrates enrollment creation, reads and wishlists.
type EnrollmentService struct {
	repo         enrollmentRepository
	students     studentRepository
	courses      courseDefinitions
	certificates certificateLister
	logger       *zap.Logger
	now          func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentRepository, courses courseDefinitions, certificates certificateLister, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, certificates: certificates, logger: logger, now: time.Now}
}

// Enroll registers the student in a published course. A second call for the same pair is a CONFLICT.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
	}
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}
	def, err := s.courses.Definition(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !def.Course.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	enrollment := &models.Enrollment{StudentID: studentID, CourseID: courseID, EnrolledAt: s.now().UTC()}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrEnrollmentExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
		}
		return nil, appErrors.Internal(err, "failed to enroll student")
	}
	s.logger.Info("student enrolled", zap.String("student_id", studentID), zap.String("course_id", courseID), zap.String("enrollment_id", enrollment.ID))
	return enrollment, nil
}

// List returns a page of the student's enrollments.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.StudentID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	items, total, err := s.repo.ListByStudent(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns the detail view of one enrollment and records the access.
func (s *EnrollmentService) Get(ctx context.Context, studentID, courseID string) (*models.EnrollmentOverview, error) {
	detail, err := s.repo.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}

	now := s.now().UTC()
	if err := s.repo.Touch(ctx, detail.ID, now); err != nil {
		s.logger.Warn("failed to record enrollment access", zap.String("enrollment_id", detail.ID), zap.Error(err))
	} else {
		detail.LastAccessed = &now
	}

	content, err := s.repo.ListContentProgress(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load content progress")
	}
	attempts, err := s.repo.ListAttempts(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load quiz attempts")
	}
	overview := &models.EnrollmentOverview{
		EnrollmentDetail: *detail,
		Content:          content,
		Attempts:         attempts,
		Certificates:     []models.Certificate{},
	}
	cert, err := s.certificates.FindByEnrollment(ctx, detail.ID)
	switch {
	case err == nil:
		overview.Certificates = append(overview.Certificates, *cert)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load certificate")
	}
	return overview, nil
}

// AddToWishlist bookmarks a course. Repeated calls are idempotent.
func (s *EnrollmentService) AddToWishlist(ctx context.Context, studentID, courseID string) error {
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return err
	}
	if _, err := s.courses.Definition(ctx, courseID); err != nil {
		return err
	}
	if err := s.students.AddToWishlist(ctx, studentID, courseID); err != nil {
		return appErrors.Internal(err, "failed to update wishlist")
	}
	return nil
}

// RemoveFromWishlist deletes a bookmark; a missing one is NOT_FOUND.
func (s *EnrollmentService) RemoveFromWishlist(ctx context.Context, studentID, courseID string) error {
	removed, err := s.students.RemoveFromWishlist(ctx, studentID, courseID)
	if err != nil {
		return appErrors.Internal(err, "failed to update wishlist")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "course not in wishlist")
	}
	return nil
}

// Wishlist returns the student's bookmarks.
func (s *EnrollmentService) Wishlist(ctx context.Context, studentID string) ([]models.WishlistItem, error) {
	items, err := s.students.ListWishlist(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load wishlist")
	}
	return items, nil
}

func (s *EnrollmentService) activeStudent(ctx context.Context, studentID string) (*models.Student, error) {
	return loadActiveStudent(ctx, s.students, studentID)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

func loadActiveStudent(ctx context.Context, students studentFinder, studentID string) (*models.Student, error) {
	student, err := students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student account is inactive")
	}
	return student, nil
}
