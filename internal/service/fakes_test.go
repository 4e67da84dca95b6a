package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

type mockStudentRepo struct {
	students map[string]models.Student
	wishlist map[string]map[string]bool
}

func newMockStudentRepo(students ...models.Student) *mockStudentRepo {
	m := &mockStudentRepo{students: map[string]models.Student{}, wishlist: map[string]map[string]bool{}}
	for _, s := range students {
		m.students[s.ID] = s
	}
	return m
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) AddToWishlist(ctx context.Context, studentID, courseID string) error {
	if m.wishlist[studentID] == nil {
		m.wishlist[studentID] = map[string]bool{}
	}
	m.wishlist[studentID][courseID] = true
	return nil
}

func (m *mockStudentRepo) RemoveFromWishlist(ctx context.Context, studentID, courseID string) (bool, error) {
	if !m.wishlist[studentID][courseID] {
		return false, nil
	}
	delete(m.wishlist[studentID], courseID)
	return true, nil
}

func (m *mockStudentRepo) ListWishlist(ctx context.Context, studentID string) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	for courseID := range m.wishlist[studentID] {
		items = append(items, models.WishlistItem{StudentID: studentID, CourseID: courseID})
	}
	return items, nil
}

type mockCourseDefinitions struct {
	defs map[string]*models.CourseDefinition
}

func (m *mockCourseDefinitions) Definition(ctx context.Context, courseID string) (*models.CourseDefinition, error) {
	return NewCourseService(m, nil, nil).Definition(ctx, courseID)
}

func (m *mockCourseDefinitions) LiveDefinition(ctx context.Context, courseID string) (*models.CourseDefinition, error) {
	return NewCourseService(m, nil, nil).LiveDefinition(ctx, courseID)
}

func (m *mockCourseDefinitions) FindDefinition(ctx context.Context, id string) (*models.CourseDefinition, error) {
	if def, ok := m.defs[id]; ok {
		return def, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseDefinitions) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if def, ok := m.defs[id]; ok {
		c := def.Course
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

// mockProgressStore keeps enrollments in memory and enforces the version check.
type mockProgressStore struct {
	mu        sync.Mutex
	aggs      map[string]*models.EnrollmentAggregate
	attempts  []models.QuizAttempt
	writes    int
	conflicts int
}

func newMockProgressStore() *mockProgressStore {
	return &mockProgressStore{aggs: map[string]*models.EnrollmentAggregate{}}
}

func (m *mockProgressStore) enroll(id, studentID, courseID string) *models.EnrollmentAggregate {
	agg := &models.EnrollmentAggregate{Enrollment: models.Enrollment{ID: id, StudentID: studentID, CourseID: courseID, EnrolledAt: time.Now(), Version: 1}}
	m.aggs[studentID+"|"+courseID] = agg
	return agg
}

func (m *mockProgressStore) FindAggregate(ctx context.Context, studentID, courseID string) (*models.EnrollmentAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggs[studentID+"|"+courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *agg
	cp.Content = append([]models.ContentProgress(nil), agg.Content...)
	return &cp, nil
}

func (m *mockProgressStore) SaveProgress(ctx context.Context, write *models.ProgressWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := write.Enrollment
	agg := m.aggs[e.StudentID+"|"+e.CourseID]
	if agg == nil {
		for _, a := range m.aggs {
			if a.ID == e.ID {
				agg = a
			}
		}
	}
	if m.conflicts > 0 {
		m.conflicts--
		agg.Version++
		return repository.ErrVersionConflict
	}
	if agg.Version != write.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	m.writes++
	content := agg.Content
	agg.Enrollment = e
	agg.Version = write.ExpectedVersion + 1
	agg.Content = content
	if write.Attempt != nil {
		m.attempts = append(m.attempts, *write.Attempt)
	}
	if c := write.Content; c != nil {
		found := false
		for i := range agg.Content {
			if agg.Content[i].ContentItemID == c.ContentItemID {
				agg.Content[i].Completed = agg.Content[i].Completed || c.Completed
				agg.Content[i].LastAccessed = c.LastAccessed
				if agg.Content[i].CompletedAt == nil {
					agg.Content[i].CompletedAt = c.CompletedAt
				}
				found = true
			}
		}
		if !found {
			agg.Content = append(agg.Content, *c)
		}
	}
	write.Enrollment.Version = agg.Version
	return nil
}

type mockCertificateIssuer struct {
	calls []string
	cert  *models.Certificate
}

func (m *mockCertificateIssuer) EnsureIssued(ctx context.Context, enrollmentID string) *models.Certificate {
	m.calls = append(m.calls, enrollmentID)
	if m.cert == nil {
		return nil
	}
	c := *m.cert
	c.EnrollmentID = enrollmentID
	return &c
}
