package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

type courseRepository interface {
	FindDefinition(ctx context.Context, id string) (*models.CourseDefinition, error)
}

// CourseService serves course definitions through the read-through cache.
type CourseService struct {
	repo   courseRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewCourseService constructs CourseService. cache may be nil.
func NewCourseService(repo courseRepository, cache *CacheService, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, logger: logger}
}

func courseCacheKey(id string) string {
	return "course:definition:" + id
}

// Definition returns the course with its ordered content, served from the
// cache when possible. Use it for question lookup only.
func (s *CourseService) Definition(ctx context.Context, courseID string) (*models.CourseDefinition, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	var cached models.CourseDefinition
	if hit, _ := s.cache.Get(ctx, courseCacheKey(courseID), &cached); hit {
		return &cached, nil
	}
	return s.LiveDefinition(ctx, courseID)
}

// LiveDefinition reads the course from the database, bypassing the cache, and
// refreshes the cached entry. Progress totals must come from here.
func (s *CourseService) LiveDefinition(ctx context.Context, courseID string) (*models.CourseDefinition, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	def, err := s.repo.FindDefinition(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.cache.Invalidate(ctx, courseCacheKey(courseID))
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	_ = s.cache.Set(ctx, courseCacheKey(courseID), def, 0)
	return def, nil
}
