package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/events"
)

// ProgressOutcome is the stored state after a manual progress update.
type ProgressOutcome struct {
	Enrollment   models.Enrollment
	Changed      bool
	CompletedNow bool
	Certificate  *models.Certificate
}

// ProgressService applies manual progress updates.
type ProgressService struct {
	updater   *progressUpdater
	validator *validator.Validate
}

// NewProgressService constructs ProgressService.
func NewProgressService(store progressStore, certs certificateIssuer, publisher events.Publisher, metrics *MetricsService, maxRetries int, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	return &ProgressService{
		updater:   newProgressUpdater(store, certs, publisher, metrics, maxRetries, logger),
		validator: validate,
	}
}

// Update raises the enrollment's progress. Values below the stored progress leave it unchanged.
func (s *ProgressService) Update(ctx context.Context, studentID, courseID string, req dto.UpdateProgressRequest) (*ProgressOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "progress must be an integer between 0 and 100")
	}
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
	}

	changed := false
	enrollment, completedNow, err := s.updater.apply(ctx, studentID, courseID, func(agg *models.EnrollmentAggregate, now time.Time) (*models.ProgressWrite, bool, error) {
		e := agg.Enrollment
		var completedNow bool
		changed, completedNow = ApplyProgress(&e, *req.Progress, now)
		if !changed {
			return nil, false, nil
		}
		e.LastAccessed = &now
		return &models.ProgressWrite{Enrollment: e, ExpectedVersion: agg.Version}, completedNow, nil
	})
	if err != nil {
		return nil, err
	}
	return &ProgressOutcome{
		Enrollment:   enrollment,
		Changed:      changed,
		CompletedNow: completedNow,
		Certificate:  s.updater.afterCommit(ctx, enrollment, completedNow),
	}, nil
}
