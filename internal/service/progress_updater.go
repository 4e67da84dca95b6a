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
	"github.com/noah-isme/learnhub-api/pkg/events"
)

// DefaultEnrollmentRetries bounds optimistic retries when none is configured.
const DefaultEnrollmentRetries = 3

type progressStore interface {
	FindAggregate(ctx context.Context, studentID, courseID string) (*models.EnrollmentAggregate, error)
	SaveProgress(ctx context.Context, write *models.ProgressWrite) error
}

type certificateIssuer interface {
	EnsureIssued(ctx context.Context, enrollmentID string) *models.Certificate
}

// CourseCompletedEvent is published on learning.course_completed.
type CourseCompletedEvent struct {
	EnrollmentID string    `json:"enrollment_id"`
	StudentID    string    `json:"student_id"`
	CourseID     string    `json:"course_id"`
	CompletedAt  time.Time `json:"completed_at"`
}

// QuizAttemptedEvent is published on learning.quiz_attempted.
type QuizAttemptedEvent struct {
	EnrollmentID  string `json:"enrollment_id"`
	ContentItemID string `json:"content_item_id"`
	Score         int    `json:"score"`
	Passed        bool   `json:"passed"`
}

// buildWrite derives the write for one attempt from a freshly loaded aggregate.
// Returning a nil write means nothing needs persisting.
type buildWrite func(agg *models.EnrollmentAggregate, now time.Time) (*models.ProgressWrite, bool, error)

// progressUpdater runs the optimistic read-modify-write shared by the quiz and
// manual progress paths, and the completion side effects after commit.
type progressUpdater struct {
	store      progressStore
	certs      certificateIssuer
	events     events.Publisher
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
	now        func() time.Time
}

func newProgressUpdater(store progressStore, certs certificateIssuer, publisher events.Publisher, metrics *MetricsService, maxRetries int, logger *zap.Logger) *progressUpdater {
	if maxRetries <= 0 {
		maxRetries = DefaultEnrollmentRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &progressUpdater{store: store, certs: certs, events: publisher, metrics: metrics, logger: logger, maxRetries: maxRetries, now: time.Now}
}

// apply loads, rebuilds and saves until the version check succeeds or retries run out.
// It returns the enrollment as stored and whether this call completed it.
func (u *progressUpdater) apply(ctx context.Context, studentID, courseID string, build buildWrite) (models.Enrollment, bool, error) {
	for attempt := 0; ; attempt++ {
		agg, err := u.store.FindAggregate(ctx, studentID, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Enrollment{}, false, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return models.Enrollment{}, false, appErrors.Internal(err, "failed to load enrollment")
		}

		write, completedNow, err := build(agg, u.now().UTC())
		if err != nil {
			return models.Enrollment{}, false, err
		}
		if write == nil {
			return agg.Enrollment, false, nil
		}

		err = u.store.SaveProgress(ctx, write)
		if err == nil {
			return write.Enrollment, completedNow, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return models.Enrollment{}, false, appErrors.Internal(err, "failed to save progress")
		}
		if attempt >= u.maxRetries {
			u.metrics.RecordVersionConflict(true)
			u.logger.Warn("enrollment update retries exhausted", zap.String("enrollment_id", agg.ID), zap.Int("attempts", attempt+1))
			return models.Enrollment{}, false, appErrors.Clone(appErrors.ErrConflict, "enrollment was modified concurrently, please retry")
		}
		u.metrics.RecordVersionConflict(false)
		if err := ctx.Err(); err != nil {
			return models.Enrollment{}, false, appErrors.Internal(err, "request cancelled")
		}
	}
}

// afterCommit publishes completion and makes sure a completed enrollment has a certificate.
func (u *progressUpdater) afterCommit(ctx context.Context, e models.Enrollment, completedNow bool) *models.Certificate {
	if completedNow {
		u.metrics.RecordCompletion()
		completedAt := u.now().UTC()
		if e.CompletedAt != nil {
			completedAt = *e.CompletedAt
		}
		u.publish(ctx, events.TopicCourseCompleted, CourseCompletedEvent{
			EnrollmentID: e.ID,
			StudentID:    e.StudentID,
			CourseID:     e.CourseID,
			CompletedAt:  completedAt,
		})
		u.logger.Info("course completed", zap.String("enrollment_id", e.ID), zap.String("student_id", e.StudentID))
	}
	if !e.Completed || u.certs == nil {
		return nil
	}
	return u.certs.EnsureIssued(ctx, e.ID)
}

func (u *progressUpdater) publish(ctx context.Context, topic string, payload interface{}) {
	if u.events == nil {
		return
	}
	if err := u.events.Publish(ctx, topic, payload); err != nil {
		u.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
