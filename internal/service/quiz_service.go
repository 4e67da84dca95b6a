package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/events"
)

// QuizSubmission is a graded-quiz request from either endpoint.
type QuizSubmission struct {
	StudentID     string          `validate:"required"`
	CourseID      string          `validate:"required"`
	ContentItemID string          `validate:"required"`
	Answers       json.RawMessage `validate:"required"`
	// RequireArray rejects answers keyed by question id.
	RequireArray bool
}

// QuizOutcome is the result of a submission after persistence.
type QuizOutcome struct {
	Grade        GradeResult
	Enrollment   models.Enrollment
	CompletedNow bool
	Certificate  *models.Certificate
}

type quizCourses interface {
	courseDefinitions
	LiveDefinition(ctx context.Context, courseID string) (*models.CourseDefinition, error)
}

// QuizService grades quizzes and folds results into enrollment progress.
type QuizService struct {
	updater   *progressUpdater
	students  studentFinder
	courses   quizCourses
	grader    *QuizGrader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(store progressStore, students studentFinder, courses quizCourses, grader *QuizGrader, certs certificateIssuer, publisher events.Publisher, metrics *MetricsService, maxRetries int, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if grader == nil {
		grader = NewQuizGrader(TextPolicyExactMatch, DefaultPassThreshold)
	}
	return &QuizService{
		updater:   newProgressUpdater(store, certs, publisher, metrics, maxRetries, logger),
		students:  students,
		courses:   courses,
		grader:    grader,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Submit grades a quiz, appends the attempt, updates content and course progress,
// and issues a certificate when the enrollment is complete.
func (s *QuizService) Submit(ctx context.Context, sub QuizSubmission) (*QuizOutcome, error) {
	if err := s.validator.Struct(sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "studentId, courseId, contentItemId and answers are required")
	}
	if _, err := loadActiveStudent(ctx, s.students, sub.StudentID); err != nil {
		return nil, err
	}
	def, err := s.courses.Definition(ctx, sub.CourseID)
	if err != nil {
		return nil, err
	}
	item, ok := def.FindContent(sub.ContentItemID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content item not found")
	}
	if item.Type != models.ContentQuiz {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content item is not a quiz")
	}
	answers, err := DecodeAnswers(sub.Answers, item.Questions, sub.RequireArray)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	grade := s.grader.Grade(item.Questions, answers)
	stored, err := json.Marshal(answers)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode answers")
	}

	enrollment, completedNow, err := s.updater.apply(ctx, sub.StudentID, sub.CourseID, func(agg *models.EnrollmentAggregate, now time.Time) (*models.ProgressWrite, bool, error) {
		live, err := s.courses.LiveDefinition(ctx, sub.CourseID)
		if err != nil {
			return nil, false, err
		}
		prev, _ := agg.Item(item.ID)
		itemDone := prev.Completed || grade.Passed

		completedCount := agg.CompletedAmong(live)
		if _, inCourse := live.FindContent(item.ID); inCourse && itemDone && !prev.Completed {
			completedCount++
		}

		e := agg.Enrollment
		_, completedNow := ApplyProgress(&e, ComputeProgress(completedCount, live.TotalContent()), now)
		e.LastAccessed = &now

		content := &models.ContentProgress{
			EnrollmentID:  e.ID,
			ContentItemID: item.ID,
			Completed:     itemDone,
			LastAccessed:  now,
			CompletedAt:   prev.CompletedAt,
		}
		if itemDone && content.CompletedAt == nil {
			content.CompletedAt = &now
		}
		return &models.ProgressWrite{
			Enrollment:      e,
			ExpectedVersion: agg.Version,
			Attempt: &models.QuizAttempt{
				EnrollmentID:  e.ID,
				ContentItemID: item.ID,
				AttemptDate:   now,
				Score:         grade.Score,
				Answers:       stored,
				Passed:        grade.Passed,
			},
			Content: content,
		}, completedNow, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQuizSubmission(grade.Score, grade.Passed)
	s.updater.publish(ctx, events.TopicQuizAttempted, QuizAttemptedEvent{
		EnrollmentID:  enrollment.ID,
		ContentItemID: item.ID,
		Score:         grade.Score,
		Passed:        grade.Passed,
	})
	s.logger.Debug("quiz graded",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("content_item_id", item.ID),
		zap.Int("score", grade.Score),
		zap.Bool("passed", grade.Passed))

	return &QuizOutcome{
		Grade:        grade,
		Enrollment:   enrollment,
		CompletedNow: completedNow,
		Certificate:  s.updater.afterCommit(ctx, enrollment, completedNow),
	}, nil
}
