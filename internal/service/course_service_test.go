package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

type countingCourseRepo struct {
	mockCourseDefinitions
	loads int
}

func (c *countingCourseRepo) FindDefinition(ctx context.Context, id string) (*models.CourseDefinition, error) {
	c.loads++
	return c.mockCourseDefinitions.FindDefinition(ctx, id)
}

func TestCourseServiceDefinitionReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingCourseRepo{mockCourseDefinitions: mockCourseDefinitions{defs: map[string]*models.CourseDefinition{
		"course-1": {
			Course:  models.Course{ID: "course-1", Title: "Geography", Published: true},
			Content: []models.ContentItem{geographyQuiz()},
		},
	}}}
	cache := NewCacheService(repository.NewCacheRepository(client, "learnhub"), nil, time.Minute, nil, true)
	svc := NewCourseService(repo, cache, nil)
	ctx := context.Background()

	def, err := svc.Definition(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, def.TotalContent())

	cached, err := svc.Definition(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loads)
	item, ok := cached.FindContent("quiz-1")
	require.True(t, ok)
	assert.Len(t, item.Questions, 2)
	assert.JSONEq(t, `1`, string(item.Questions[0].CorrectAnswer))

	repo.defs["course-1"].Content = append(repo.defs["course-1"].Content, models.ContentItem{ID: "intro", CourseID: "course-1", Type: models.ContentTutorial})

	stale, err := svc.Definition(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stale.TotalContent())
	assert.Equal(t, 1, repo.loads)

	live, err := svc.LiveDefinition(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 2, live.TotalContent())
	assert.Equal(t, 2, repo.loads)

	refreshed, err := svc.Definition(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.TotalContent())
	assert.Equal(t, 2, repo.loads)

	_, err = svc.Definition(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseServiceLiveDefinitionEvictsDeletedCourse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingCourseRepo{mockCourseDefinitions: mockCourseDefinitions{defs: map[string]*models.CourseDefinition{
		"course-1": {Course: models.Course{ID: "course-1"}, Content: []models.ContentItem{geographyQuiz()}},
	}}}
	svc := NewCourseService(repo, NewCacheService(repository.NewCacheRepository(client, "learnhub"), nil, time.Minute, nil, true), nil)
	ctx := context.Background()

	_, err := svc.Definition(ctx, "course-1")
	require.NoError(t, err)

	delete(repo.defs, "course-1")
	_, err = svc.LiveDefinition(ctx, "course-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Definition(ctx, "course-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 3, repo.loads)
}

func TestQuizServiceCountsContentLiveDespiteCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingCourseRepo{mockCourseDefinitions: mockCourseDefinitions{defs: map[string]*models.CourseDefinition{
		"course-1": {
			Course:  models.Course{ID: "course-1", Title: "Geography", Published: true},
			Content: []models.ContentItem{geographyQuiz()},
		},
	}}}
	courses := NewCourseService(repo, NewCacheService(repository.NewCacheRepository(client, "learnhub"), nil, time.Minute, nil, true), nil)
	ctx := context.Background()

	_, err := courses.Definition(ctx, "course-1")
	require.NoError(t, err)
	repo.defs["course-1"].Content = append(repo.defs["course-1"].Content, models.ContentItem{ID: "intro", CourseID: "course-1", Type: models.ContentTutorial})

	store := newMockProgressStore()
	store.enroll("enr-1", "stu-1", "course-1")
	certs := &mockCertificateIssuer{}
	students := newMockStudentRepo(models.Student{ID: "stu-1", FullName: "Ada", Active: true})
	svc := NewQuizService(store, students, courses, nil, certs, nil, nil, 3, nil, nil)

	out, err := svc.Submit(ctx, submission(`[1, "paris"]`))
	require.NoError(t, err)
	assert.True(t, out.Grade.Passed)
	assert.Equal(t, 50, out.Enrollment.Progress)
	assert.False(t, out.Enrollment.Completed)
	assert.False(t, out.CompletedNow)
	assert.Nil(t, out.Certificate)
	assert.Empty(t, certs.calls)
}

func TestCourseServiceFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	repo := &countingCourseRepo{mockCourseDefinitions: mockCourseDefinitions{defs: map[string]*models.CourseDefinition{
		"course-1": {Course: models.Course{ID: "course-1"}},
	}}}
	svc := NewCourseService(repo, NewCacheService(repository.NewCacheRepository(client, "learnhub"), nil, time.Minute, nil, true), nil)

	_, err := svc.Definition(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loads)
}
