package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/events"
	"github.com/noah-isme/learnhub-api/pkg/export"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

// JobTypeCertificate identifies certificate backfill jobs.
const JobTypeCertificate = "certificate.issue"

type certificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) (bool, error)
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error)
	FindBySerial(ctx context.Context, serial string) (*models.Certificate, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error)
}

type certificateSubjects interface {
	FindCertificateSubject(ctx context.Context, enrollmentID string) (*models.CertificateSubject, error)
}

type certificateStore interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type certificateSigner interface {
	GenerateUntil(ref, relPath string, expiresAt time.Time) (string, error)
	Parse(token string, allowExpired bool) (*storage.SignedRef, error)
}

type certificateRenderer interface {
	Render(data export.CertificateData) ([]byte, error)
}

// CertificateConfig controls URLs and validity of issued certificates.
type CertificateConfig struct {
	PublicBaseURL string
	APIPrefix     string
	Validity      time.Duration
}

// CertificateIssuedEvent is published on learning.certificate_issued.
type CertificateIssuedEvent struct {
	CertificateID string    `json:"certificate_id"`
	EnrollmentID  string    `json:"enrollment_id"`
	URL           string    `json:"url"`
	IssuedAt      time.Time `json:"issued_at"`
}

// CertificateService issues, lists and serves completion certificates.
type CertificateService struct {
	repo     certificateRepository
	subjects certificateSubjects
	store    certificateStore
	signer   certificateSigner
	renderer certificateRenderer
	events   events.Publisher
	metrics  *MetricsService
	cfg      CertificateConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(repo certificateRepository, subjects certificateSubjects, store certificateStore, signer certificateSigner, renderer certificateRenderer, publisher events.Publisher, metrics *MetricsService, cfg CertificateConfig, logger *zap.Logger) *CertificateService {
	if cfg.Validity <= 0 {
		cfg.Validity = 2 * 365 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		repo:     repo,
		subjects: subjects,
		store:    store,
		signer:   signer,
		renderer: renderer,
		events:   publisher,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureIssued returns the enrollment's certificate, issuing it if needed.
// Failures are logged and yield nil; they never fail the caller.
func (s *CertificateService) EnsureIssued(ctx context.Context, enrollmentID string) *models.Certificate {
	cert, _, err := s.Issue(ctx, enrollmentID)
	if err != nil {
		s.logger.Error("certificate issuance failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil
	}
	return cert
}

// Issue creates the certificate for a completed enrollment. An existing
// certificate is returned unchanged with issued=false.
func (s *CertificateService) Issue(ctx context.Context, enrollmentID string) (cert *models.Certificate, issued bool, err error) {
	existing, err := s.repo.FindByEnrollment(ctx, enrollmentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordCertificateFailure("lookup")
		return nil, false, fmt.Errorf("find certificate: %w", err)
	}

	subject, err := s.subjects.FindCertificateSubject(ctx, enrollmentID)
	if err != nil {
		s.metrics.RecordCertificateFailure("lookup")
		return nil, false, fmt.Errorf("load certificate subject: %w", err)
	}
	if !subject.Completed {
		return nil, false, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not completed")
	}

	now := s.now().UTC()
	serial := uuid.NewString()
	expiresAt := now.Add(s.cfg.Validity)
	completedAt := now
	if subject.CompletedAt != nil {
		completedAt = *subject.CompletedAt
	}

	pdf, err := s.renderer.Render(export.CertificateData{
		StudentName: subject.StudentName,
		CourseTitle: subject.CourseTitle,
		CompletedAt: completedAt,
		ExpiresAt:   expiresAt,
		Serial:      serial,
	})
	if err != nil {
		s.metrics.RecordCertificateFailure("render")
		return nil, false, fmt.Errorf("render certificate: %w", err)
	}

	relPath := path.Join(enrollmentID, serial+".pdf")
	if _, err := s.store.Save(relPath, pdf); err != nil {
		s.metrics.RecordCertificateFailure("store")
		return nil, false, fmt.Errorf("store certificate: %w", err)
	}

	token, err := s.signer.GenerateUntil(serial, relPath, expiresAt)
	if err != nil {
		s.metrics.RecordCertificateFailure("sign")
		s.discard(relPath)
		return nil, false, fmt.Errorf("sign certificate url: %w", err)
	}

	cert = &models.Certificate{
		EnrollmentID: enrollmentID,
		Serial:       serial,
		URL:          s.downloadURL(token),
		IssuedAt:     now,
		ExpiresAt:    expiresAt,
	}
	inserted, err := s.repo.Create(ctx, cert)
	if err != nil {
		s.metrics.RecordCertificateFailure("persist")
		s.discard(relPath)
		return nil, false, fmt.Errorf("persist certificate: %w", err)
	}
	if !inserted {
		// Lost a race with a concurrent issuer; keep theirs.
		s.discard(relPath)
		winner, err := s.repo.FindByEnrollment(ctx, enrollmentID)
		if err != nil {
			return nil, false, fmt.Errorf("reload certificate: %w", err)
		}
		return winner, false, nil
	}

	s.metrics.RecordCertificateIssued()
	s.logger.Info("certificate issued", zap.String("enrollment_id", enrollmentID), zap.String("serial", serial))
	s.publishIssued(ctx, cert)
	return cert, true, nil
}

// ListForStudent returns the student's certificates.
func (s *CertificateService) ListForStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	certs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list certificates")
	}
	if certs == nil {
		certs = []models.CertificateDetail{}
	}
	return certs, nil
}

// ResolveDownload validates a signed token and returns the PDF bytes with a download filename.
func (s *CertificateService) ResolveDownload(ctx context.Context, token string) ([]byte, string, error) {
	ref, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "certificate link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	if _, err := s.repo.FindBySerial(ctx, ref.Ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Internal(err, "failed to load certificate")
	}
	file, err := s.store.Open(ref.Path)
	if err != nil {
		s.logger.Error("certificate file missing", zap.String("serial", ref.Ref), zap.Error(err))
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate file not found")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to read certificate")
	}
	return data, "certificate-" + ref.Ref + ".pdf", nil
}

// HandleJob is the jobs.Handler for backfill jobs; errors trigger queue retries.
func (s *CertificateService) HandleJob(ctx context.Context, job jobs.Job) error {
	enrollmentID, ok := job.Payload.(string)
	if !ok || enrollmentID == "" {
		return fmt.Errorf("certificate job %s: invalid payload %T", job.ID, job.Payload)
	}
	_, _, err := s.Issue(ctx, enrollmentID)
	if errors.Is(err, appErrors.ErrPreconditionFailed) {
		s.logger.Warn("skipping certificate for incomplete enrollment", zap.String("enrollment_id", enrollmentID))
		return nil
	}
	return err
}

func (s *CertificateService) publishIssued(ctx context.Context, cert *models.Certificate) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.TopicCertificateIssued, CertificateIssuedEvent{
		CertificateID: cert.ID,
		EnrollmentID:  cert.EnrollmentID,
		URL:           cert.URL,
		IssuedAt:      cert.IssuedAt,
	}); err != nil {
		s.logger.Warn("failed to publish certificate event", zap.String("enrollment_id", cert.EnrollmentID), zap.Error(err))
	}
}

func (s *CertificateService) downloadURL(token string) string {
	return s.cfg.PublicBaseURL + s.cfg.APIPrefix + "/certificates/" + token
}

func (s *CertificateService) discard(relPath string) {
	if err := s.store.Delete(relPath); err != nil {
		s.logger.Warn("failed to remove orphaned certificate file", zap.String("path", relPath), zap.Error(err))
	}
}
