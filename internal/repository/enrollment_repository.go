package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnhub-api/internal/models"
)

var (
	// ErrEnrollmentExists is returned when the student is already enrolled in the course.
	ErrEnrollmentExists = errors.New("enrollment already exists")
	// ErrVersionConflict is returned when the enrollment changed since it was read.
	ErrVersionConflict = errors.New("enrollment version conflict")
)

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.enrolled_at, e.progress, e.completed, e.completed_at, e.last_accessed, e.version`

// EnrollmentRepository handles persistence of enrollments and their progress.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new enrollment. ErrEnrollmentExists is returned on a duplicate pair.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	enrollment.Version = 1
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, progress, completed, completed_at, last_accessed, version)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :progress, :completed, :completed_at, :last_accessed, :version)
        ON CONFLICT (student_id, course_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create enrollment rows: %w", err)
	}
	if affected == 0 {
		return ErrEnrollmentExists
	}
	return nil
}

// FindByStudentAndCourse returns the enrollment with its course title.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error) {
	query := `SELECT ` + enrollmentColumns + `, c.title AS course_title
        FROM enrollments e JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.course_id = $2`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindAggregate loads the enrollment and all of its content progress rows.
func (r *EnrollmentRepository) FindAggregate(ctx context.Context, studentID, courseID string) (*models.EnrollmentAggregate, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.student_id = $1 AND e.course_id = $2`
	var agg models.EnrollmentAggregate
	if err := r.db.GetContext(ctx, &agg.Enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	content, err := r.ListContentProgress(ctx, agg.ID)
	if err != nil {
		return nil, err
	}
	agg.Content = content
	return &agg, nil
}

// ListContentProgress returns per-item progress of an enrollment.
func (r *EnrollmentRepository) ListContentProgress(ctx context.Context, enrollmentID string) ([]models.ContentProgress, error) {
	const query = `SELECT enrollment_id, content_item_id, completed, last_accessed, completed_at
        FROM content_progress WHERE enrollment_id = $1 ORDER BY content_item_id`
	var content []models.ContentProgress
	if err := r.db.SelectContext(ctx, &content, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list content progress: %w", err)
	}
	return content, nil
}

// ListAttempts returns quiz attempts of an enrollment, newest first.
func (r *EnrollmentRepository) ListAttempts(ctx context.Context, enrollmentID string) ([]models.QuizAttempt, error) {
	const query = `SELECT id, enrollment_id, content_item_id, attempt_date, score, answers, passed
        FROM quiz_attempts WHERE enrollment_id = $1 ORDER BY attempt_date DESC`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	return attempts, nil
}

// ListByStudent returns a page of the student's enrollments with course titles.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	conditions := []string{"e.student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.Completed != nil {
		conditions = append(conditions, fmt.Sprintf("e.completed = $%d", len(args)+1))
		args = append(args, *filter.Completed)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")
	base := `FROM enrollments e JOIN courses c ON c.id = e.course_id`

	page := models.NewPagination(filter.Page, filter.PageSize, 0)
	offset := (page.Page - 1) * page.PageSize

	query := fmt.Sprintf(`SELECT %s, c.title AS course_title %s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d`,
		enrollmentColumns, base+clause, page.PageSize, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Touch records an access without bumping the version.
func (r *EnrollmentRepository) Touch(ctx context.Context, enrollmentID string, at time.Time) error {
	const query = `UPDATE enrollments SET last_accessed = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, enrollmentID, at); err != nil {
		return fmt.Errorf("touch enrollment: %w", err)
	}
	return nil
}

// SaveProgress applies one optimistic update in a single transaction: the
// versioned enrollment update, then the optional attempt insert and content
// progress upsert. A stale ExpectedVersion rolls everything back and returns
// ErrVersionConflict. On success the enrollment version is bumped in place.
func (r *EnrollmentRepository) SaveProgress(ctx context.Context, write *models.ProgressWrite) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin progress tx: %w", err)
	}
	if err := r.saveProgressTx(ctx, tx, write); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	write.Enrollment.Version = write.ExpectedVersion + 1
	return nil
}

func (r *EnrollmentRepository) saveProgressTx(ctx context.Context, tx *sqlx.Tx, write *models.ProgressWrite) error {
	e := write.Enrollment
	const update = `UPDATE enrollments SET progress = $3, completed = $4, completed_at = $5, last_accessed = $6, version = version + 1
        WHERE id = $1 AND version = $2`
	res, err := tx.ExecContext(ctx, update, e.ID, write.ExpectedVersion, e.Progress, e.Completed, e.CompletedAt, e.LastAccessed)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	if a := write.Attempt; a != nil {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		const insertAttempt = `INSERT INTO quiz_attempts (id, enrollment_id, content_item_id, attempt_date, score, answers, passed)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, insertAttempt, a.ID, a.EnrollmentID, a.ContentItemID, a.AttemptDate, a.Score, string(a.Answers), a.Passed); err != nil {
			return fmt.Errorf("insert quiz attempt: %w", err)
		}
	}

	if cp := write.Content; cp != nil {
		const upsert = `INSERT INTO content_progress (enrollment_id, content_item_id, completed, last_accessed, completed_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (enrollment_id, content_item_id) DO UPDATE SET
                completed = content_progress.completed OR EXCLUDED.completed,
                last_accessed = EXCLUDED.last_accessed,
                completed_at = COALESCE(content_progress.completed_at, EXCLUDED.completed_at)`
		if _, err := tx.ExecContext(ctx, upsert, cp.EnrollmentID, cp.ContentItemID, cp.Completed, cp.LastAccessed, cp.CompletedAt); err != nil {
			return fmt.Errorf("upsert content progress: %w", err)
		}
	}
	return nil
}

// ListRoster returns progress rows of every student enrolled in a course.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, s.full_name AS student_name, e.progress, e.completed, e.last_accessed,
        (SELECT COUNT(*) FROM quiz_attempts qa WHERE qa.enrollment_id = e.id) AS quiz_attempts,
        EXISTS (SELECT 1 FROM certificates ct WHERE ct.enrollment_id = e.id) AS certificate_issued
        FROM enrollments e JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1 ORDER BY s.full_name ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return roster, nil
}

// ListPendingCertificates returns completed enrollments that have no certificate yet.
func (r *EnrollmentRepository) ListPendingCertificates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT e.id FROM enrollments e
        LEFT JOIN certificates ct ON ct.enrollment_id = e.id
        WHERE e.completed = TRUE AND ct.id IS NULL
        ORDER BY e.completed_at ASC NULLS LAST LIMIT $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("list pending certificates: %w", err)
	}
	return ids, nil
}

// FindCertificateSubject returns the names printed on an enrollment's certificate.
func (r *EnrollmentRepository) FindCertificateSubject(ctx context.Context, enrollmentID string) (*models.CertificateSubject, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, s.full_name AS student_name, e.course_id, c.title AS course_title,
        e.completed, e.completed_at
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var subject models.CertificateSubject
	if err := r.db.GetContext(ctx, &subject, query, enrollmentID); err != nil {
		return nil, err
	}
	return &subject, nil
}
