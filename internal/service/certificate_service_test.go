package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/events"
	"github.com/noah-isme/learnhub-api/pkg/export"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

type mockCertificateRepo struct {
	mu      sync.Mutex
	certs   map[string]models.Certificate
	racer   *models.Certificate
	creates int
}

func newMockCertificateRepo() *mockCertificateRepo {
	return &mockCertificateRepo{certs: map[string]models.Certificate{}}
}

func (m *mockCertificateRepo) Create(ctx context.Context, cert *models.Certificate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.racer != nil {
		m.certs[cert.EnrollmentID] = *m.racer
		m.racer = nil
	}
	if _, ok := m.certs[cert.EnrollmentID]; ok {
		return false, nil
	}
	cert.ID = "cert-" + cert.EnrollmentID
	m.certs[cert.EnrollmentID] = *cert
	return true, nil
}

func (m *mockCertificateRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.certs[enrollmentID]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) FindBySerial(ctx context.Context, serial string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.certs {
		if c.Serial == serial {
			c := c
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	return nil, nil
}

type mockCertificateSubjects map[string]models.CertificateSubject

func (m mockCertificateSubjects) FindCertificateSubject(ctx context.Context, enrollmentID string) (*models.CertificateSubject, error) {
	if s, ok := m[enrollmentID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type failingRenderer struct{}

func (failingRenderer) Render(export.CertificateData) ([]byte, error) {
	return nil, errors.New("font missing")
}

type certFixture struct {
	svc       *CertificateService
	repo      *mockCertificateRepo
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	publisher *events.RecordingPublisher
}

func newCertFixture(t *testing.T, renderer certificateRenderer) *certFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	completedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	subjects := mockCertificateSubjects{
		"enr-1":    {EnrollmentID: "enr-1", StudentName: "Ada Lovelace", CourseTitle: "Geography", Completed: true, CompletedAt: &completedAt},
		"enr-open": {EnrollmentID: "enr-open", StudentName: "Alan", CourseTitle: "Geography"},
	}
	if renderer == nil {
		renderer = export.NewCertificateRenderer("")
	}
	f := &certFixture{
		repo:      newMockCertificateRepo(),
		store:     store,
		signer:    storage.NewSignedURLSigner("secret", time.Hour),
		publisher: &events.RecordingPublisher{},
	}
	f.svc = NewCertificateService(f.repo, subjects, store, f.signer, renderer, f.publisher, nil,
		CertificateConfig{PublicBaseURL: "http://localhost:8080", APIPrefix: "/api/v1"}, nil)
	return f
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	idx := strings.LastIndex(url, "/certificates/")
	require.True(t, idx >= 0, url)
	return url[idx+len("/certificates/"):]
}

func TestCertificateServiceIssue(t *testing.T) {
	f := newCertFixture(t, nil)
	ctx := context.Background()

	cert, issued, err := f.svc.Issue(ctx, "enr-1")
	require.NoError(t, err)
	assert.True(t, issued)
	assert.NotEmpty(t, cert.Serial)
	assert.True(t, strings.HasPrefix(cert.URL, "http://localhost:8080/api/v1/certificates/"))
	assert.Equal(t, []string{events.TopicCertificateIssued}, f.publisher.Topics())

	again, issued, err := f.svc.Issue(ctx, "enr-1")
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Equal(t, cert.Serial, again.Serial)
	assert.Equal(t, 1, f.repo.creates)

	data, filename, err := f.svc.ResolveDownload(ctx, tokenFromURL(t, cert.URL))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	assert.Equal(t, "certificate-"+cert.Serial+".pdf", filename)
}

func TestCertificateServiceIssueWithoutPublisher(t *testing.T) {
	f := newCertFixture(t, nil)
	f.svc.events = nil

	cert, issued, err := f.svc.Issue(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, issued)
	assert.NotEmpty(t, cert.URL)
	assert.Empty(t, f.publisher.Topics())
}

func TestCertificateServiceRequiresCompletion(t *testing.T) {
	f := newCertFixture(t, nil)

	_, _, err := f.svc.Issue(context.Background(), "enr-open")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	assert.Nil(t, f.svc.EnsureIssued(context.Background(), "enr-open"))
	assert.Equal(t, 0, f.repo.creates)
}

func TestCertificateServiceRenderFailureIsSoft(t *testing.T) {
	f := newCertFixture(t, failingRenderer{})

	assert.Nil(t, f.svc.EnsureIssued(context.Background(), "enr-1"))
	assert.Equal(t, 0, f.repo.creates)
	assert.Empty(t, f.publisher.Events())
}

func TestCertificateServiceLostRaceKeepsWinner(t *testing.T) {
	f := newCertFixture(t, nil)
	f.repo.racer = &models.Certificate{ID: "cert-winner", EnrollmentID: "enr-1", Serial: "winner"}

	cert, issued, err := f.svc.Issue(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Equal(t, "cert-winner", cert.ID)
	assert.Empty(t, f.publisher.Events())
}

func TestCertificateServiceResolveDownloadRejectsBadTokens(t *testing.T) {
	f := newCertFixture(t, nil)
	ctx := context.Background()
	cert, _, err := f.svc.Issue(ctx, "enr-1")
	require.NoError(t, err)
	token := tokenFromURL(t, cert.URL)

	_, _, err = f.svc.ResolveDownload(ctx, token+"00")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, _, err = f.svc.ResolveDownload(ctx, "garbage")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	expired, err := f.signer.GenerateUntil(cert.Serial, "enr-1/"+cert.Serial+".pdf", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, _, err = f.svc.ResolveDownload(ctx, expired)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	unknown, err := f.signer.GenerateUntil("unknown", "enr-1/unknown.pdf", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, _, err = f.svc.ResolveDownload(ctx, unknown)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCertificateServiceHandleJob(t *testing.T) {
	f := newCertFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleJob(ctx, jobs.Job{ID: "certificate:enr-1", Type: JobTypeCertificate, Payload: "enr-1"}))
	_, err := f.repo.FindByEnrollment(ctx, "enr-1")
	require.NoError(t, err)

	assert.NoError(t, f.svc.HandleJob(ctx, jobs.Job{ID: "certificate:enr-open", Payload: "enr-open"}))
	assert.Error(t, f.svc.HandleJob(ctx, jobs.Job{ID: "bad", Payload: 42}))
	assert.Error(t, f.svc.HandleJob(ctx, jobs.Job{ID: "missing", Payload: "enr-missing"}))
}

func TestCertificateServiceListForStudentNeverNil(t *testing.T) {
	f := newCertFixture(t, nil)

	certs, err := f.svc.ListForStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.NotNil(t, certs)
	assert.Empty(t, certs)
}
