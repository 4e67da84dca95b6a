package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// CertificateRepository persists issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a certificate unless the enrollment already has one.
// It reports whether the row was inserted.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) (bool, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	const query = `INSERT INTO certificates (id, enrollment_id, serial, url, issued_at, expires_at)
        VALUES (:id, :enrollment_id, :serial, :url, :issued_at, :expires_at)
        ON CONFLICT (enrollment_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, cert)
	if err != nil {
		return false, fmt.Errorf("create certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create certificate rows: %w", err)
	}
	return affected > 0, nil
}

// FindByEnrollment returns the enrollment's certificate. sql.ErrNoRows is returned unwrapped.
func (r *CertificateRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error) {
	const query = `SELECT id, enrollment_id, serial, url, issued_at, expires_at FROM certificates WHERE enrollment_id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, enrollmentID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindBySerial returns the certificate carrying serial. sql.ErrNoRows is returned unwrapped.
func (r *CertificateRepository) FindBySerial(ctx context.Context, serial string) (*models.Certificate, error) {
	const query = `SELECT id, enrollment_id, serial, url, issued_at, expires_at FROM certificates WHERE serial = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, serial); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListByStudent returns all certificates earned by a student, newest first.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	const query = `SELECT ct.id, ct.enrollment_id, ct.serial, ct.url, ct.issued_at, ct.expires_at,
        e.course_id, c.title AS course_title
        FROM certificates ct
        JOIN enrollments e ON e.id = ct.enrollment_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 ORDER BY ct.issued_at DESC`
	var certs []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}
