package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/service"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

const testSecret = "secret"

type fakeQuizSrv struct {
	last    service.QuizSubmission
	outcome *service.QuizOutcome
	err     error
}

func (f *fakeQuizSrv) Submit(_ context.Context, sub service.QuizSubmission) (*service.QuizOutcome, error) {
	f.last = sub
	return f.outcome, f.err
}

type fakeProgressSrv struct {
	studentID string
	req       dto.UpdateProgressRequest
	err       error
}

func (f *fakeProgressSrv) Update(_ context.Context, studentID, courseID string, req dto.UpdateProgressRequest) (*service.ProgressOutcome, error) {
	f.studentID = studentID
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	e := models.Enrollment{StudentID: studentID, CourseID: courseID, Progress: *req.Progress, Completed: *req.Progress >= 100}
	return &service.ProgressOutcome{Enrollment: e, Changed: true}, nil
}

type fakeEnrollmentSrv struct {
	enrolled []string
	err      error
	filter   models.EnrollmentFilter
}

func (f *fakeEnrollmentSrv) Enroll(_ context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.enrolled = append(f.enrolled, studentID+"|"+courseID)
	return &models.Enrollment{ID: "enr-1", StudentID: studentID, CourseID: courseID}, nil
}

func (f *fakeEnrollmentSrv) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	f.filter = filter
	return nil, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (f *fakeEnrollmentSrv) Get(_ context.Context, studentID, courseID string) (*models.EnrollmentOverview, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
}

func (f *fakeEnrollmentSrv) AddToWishlist(context.Context, string, string) error { return nil }

func (f *fakeEnrollmentSrv) RemoveFromWishlist(context.Context, string, string) error {
	return appErrors.Clone(appErrors.ErrNotFound, "course not in wishlist")
}

func (f *fakeEnrollmentSrv) Wishlist(context.Context, string) ([]models.WishlistItem, error) {
	return nil, nil
}

type fakeCertificateSrv struct{}

func (fakeCertificateSrv) ListForStudent(context.Context, string) ([]models.CertificateDetail, error) {
	return []models.CertificateDetail{}, nil
}

func (fakeCertificateSrv) ResolveDownload(_ context.Context, token string) ([]byte, string, error) {
	if token != "good" {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return []byte("%PDF-1.3"), "certificate-abc.pdf", nil
}

type fakeExportSrv struct {
	who    service.Requester
	format string
}

func (f *fakeExportSrv) CourseProgress(_ context.Context, who service.Requester, courseID, format string) (*service.ExportFile, error) {
	f.who = who
	f.format = format
	return &service.ExportFile{Filename: "course-" + courseID + ".csv", ContentType: "text/csv", Data: []byte("Student\n")}, nil
}

type testServer struct {
	engine      *gin.Engine
	quizzes     *fakeQuizSrv
	progress    *fakeProgressSrv
	enrollments *fakeEnrollmentSrv
	exports     *fakeExportSrv
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	s := &testServer{
		quizzes:     &fakeQuizSrv{},
		progress:    &fakeProgressSrv{},
		enrollments: &fakeEnrollmentSrv{},
		exports:     &fakeExportSrv{},
	}
	s.engine = gin.New()
	Routes{
		Auth:         service.NewAuthService(service.AuthConfig{AccessTokenSecret: testSecret}),
		Quizzes:      NewQuizHandler(s.quizzes),
		Progress:     NewProgressHandler(s.progress),
		Enrollments:  NewEnrollmentHandler(s.enrollments),
		Certificates: NewCertificateHandler(fakeCertificateSrv{}),
		Exports:      NewExportHandler(s.exports),
	}.Register(s.engine.Group("/api/v1"))
	return s
}

func token(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID:           userID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func legacyBody(studentID string) map[string]interface{} {
	return map[string]interface{}{
		"courseId":      "course-1",
		"contentItemId": "quiz-1",
		"studentId":     studentID,
		"answers":       []interface{}{1, "paris"},
	}
}

func TestQuizHandlerLegacySubmit(t *testing.T) {
	s := newTestServer()
	s.quizzes.outcome = &service.QuizOutcome{
		Grade:       service.GradeResult{Score: 100, Passed: true, Correct: 2, Total: 2},
		Certificate: &models.Certificate{URL: "http://localhost/api/v1/certificates/tok"},
	}

	rec := s.do(http.MethodPost, "/api/v1/student/submit-quiz", "", legacyBody("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out dto.LegacySubmitQuizResponse
	decodeData(t, rec, &out)
	assert.True(t, out.Success)
	assert.Equal(t, 100, out.Score)
	assert.Equal(t, 2, out.TotalQuestions)
	require.NotNil(t, out.CertificateURL)
	assert.Equal(t, "stu-1", s.quizzes.last.StudentID)
	assert.False(t, s.quizzes.last.RequireArray)
	assert.JSONEq(t, `[1,"paris"]`, string(s.quizzes.last.Answers))

	rec = s.do(http.MethodPost, "/api/v1/student/submit-quiz", token(t, "stu-1", models.RoleStudent), legacyBody("stu-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuizHandlerLegacyRejectsForeignToken(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPost, "/api/v1/student/submit-quiz", token(t, "stu-2", models.RoleStudent), legacyBody("stu-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, s.quizzes.last.StudentID)
}

func TestQuizHandlerSubmitUsesTokenIdentity(t *testing.T) {
	s := newTestServer()
	s.quizzes.outcome = &service.QuizOutcome{
		Grade: service.GradeResult{
			Score: 50, Correct: 1, Total: 2,
			Results: []service.QuestionResult{
				{QuestionID: "q1", Index: 0, IsCorrect: true, Submitted: json.RawMessage(`1`)},
				{QuestionID: "q2", Index: 1, IsCorrect: false, Submitted: json.RawMessage(`"Rome"`)},
			},
		},
		Enrollment: models.Enrollment{Progress: 50},
	}

	rec := s.do(http.MethodPost, "/api/v1/student/courses/course-1/content/quiz-1/submit-quiz",
		token(t, "stu-1", models.RoleStudent), map[string]interface{}{"answers": []interface{}{1, "Rome"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out dto.SubmitQuizResponse
	decodeData(t, rec, &out)
	assert.Equal(t, 50, out.Progress)
	assert.False(t, out.Completed)
	require.Len(t, out.Results, 2)
	assert.False(t, out.Results[1].IsCorrect)
	assert.Nil(t, out.CertificateURL)

	assert.Equal(t, "stu-1", s.quizzes.last.StudentID)
	assert.Equal(t, "course-1", s.quizzes.last.CourseID)
	assert.Equal(t, "quiz-1", s.quizzes.last.ContentItemID)
	assert.True(t, s.quizzes.last.RequireArray)

	rec = s.do(http.MethodPost, "/api/v1/student/courses/course-1/content/quiz-1/submit-quiz", "", map[string]interface{}{"answers": []int{1}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQuizHandlerMapsServiceErrors(t *testing.T) {
	s := newTestServer()
	s.quizzes.err = appErrors.Clone(appErrors.ErrConflict, "enrollment was modified concurrently, please retry")

	rec := s.do(http.MethodPost, "/api/v1/student/submit-quiz", "", legacyBody("stu-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	s.quizzes.err = appErrors.Internal(assert.AnError, "failed to save progress")
	rec = s.do(http.MethodPost, "/api/v1/student/submit-quiz", "", legacyBody("stu-1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestProgressHandlerUpdate(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPut, "/api/v1/student/courses/course-1/progress", token(t, "stu-1", models.RoleStudent), map[string]int{"progress": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out dto.UpdateProgressResponse
	decodeData(t, rec, &out)
	assert.True(t, out.Success)
	assert.Equal(t, 100, out.Progress)
	assert.True(t, out.Completed)
	assert.Equal(t, "stu-1", s.progress.studentID)

	rec = s.do(http.MethodPut, "/api/v1/student/courses/course-1/progress", token(t, "stu-1", models.RoleStudent), "not-json-object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentHandlerRoutes(t *testing.T) {
	s := newTestServer()
	bearer := token(t, "stu-1", models.RoleStudent)

	rec := s.do(http.MethodPost, "/api/v1/student/courses/course-1/enroll", bearer, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"stu-1|course-1"}, s.enrollments.enrolled)

	s.enrollments.err = appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	rec = s.do(http.MethodPost, "/api/v1/student/courses/course-1/enroll", bearer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/student/courses?completed=true&page=2&page_size=5", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, s.enrollments.filter.Completed)
	assert.True(t, *s.enrollments.filter.Completed)
	assert.Equal(t, 2, s.enrollments.filter.Page)
	assert.Equal(t, 5, s.enrollments.filter.PageSize)
	assert.Contains(t, rec.Body.String(), `"pagination"`)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/student/courses/course-9", bearer, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/v1/student/wishlist/course-1", bearer, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/student/wishlist/course-1", bearer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/student/wishlist", bearer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/student/wishlist", "", nil).Code)
}

func TestCertificateHandlerDownload(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodGet, "/api/v1/certificates/good", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "certificate-abc.pdf")
	assert.Equal(t, "%PDF-1.3", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/certificates/bad", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/student/certificates", token(t, "stu-1", models.RoleStudent), nil).Code)
}

func TestExportHandlerRequiresStaffRole(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodGet, "/api/v1/courses/course-1/progress/export", token(t, "stu-1", models.RoleStudent), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/courses/course-1/progress/export?format=xlsx", token(t, "teacher-1", models.RoleTeacher), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx", s.exports.format)
	assert.Equal(t, service.Requester{UserID: "teacher-1", Role: models.RoleTeacher}, s.exports.who)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "course-course-1.csv")
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	failing := PingFunc(func(context.Context) error { return assert.AnError })
	ok := PingFunc(func(context.Context) error { return nil })

	r := gin.New()
	r.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{"db": ok}).Ready)
	r.GET("/degraded", NewMetricsHandler(nil, map[string]Pinger{"db": ok, "redis": failing}).Ready)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/degraded", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
}
