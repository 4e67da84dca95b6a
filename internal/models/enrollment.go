package models

import (
	"encoding/json"
	"time"
)

// Enrollment is a student's participation in one course. Completed is true
// exactly when Progress has reached 100 and is never reset.
type Enrollment struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	CourseID     string     `db:"course_id" json:"course_id"`
	EnrolledAt   time.Time  `db:"enrolled_at" json:"enrolled_at"`
	Progress     int        `db:"progress" json:"progress"`
	Completed    bool       `db:"completed" json:"completed"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	LastAccessed *time.Time `db:"last_accessed" json:"last_accessed,omitempty"`
	Version      int        `db:"version" json:"-"`
}

// EnrollmentDetail enriches Enrollment with course info.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing a student's enrollments.
type EnrollmentFilter struct {
	StudentID string
	Completed *bool
	Page      int
	PageSize  int
}

// ContentProgress tracks completion of one content item within an enrollment.
type ContentProgress struct {
	EnrollmentID  string     `db:"enrollment_id" json:"enrollment_id"`
	ContentItemID string     `db:"content_item_id" json:"content_item_id"`
	Completed     bool       `db:"completed" json:"completed"`
	LastAccessed  time.Time  `db:"last_accessed" json:"last_accessed"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// QuizAttempt is an immutable record of one graded submission.
type QuizAttempt struct {
	ID            string          `db:"id" json:"id"`
	EnrollmentID  string          `db:"enrollment_id" json:"enrollment_id"`
	ContentItemID string          `db:"content_item_id" json:"content_item_id"`
	AttemptDate   time.Time       `db:"attempt_date" json:"attempt_date"`
	Score         int             `db:"score" json:"score"`
	Answers       json.RawMessage `db:"answers" json:"answers"`
	Passed        bool            `db:"passed" json:"passed"`
}

// EnrollmentAggregate is an enrollment loaded with its per-item progress.
type EnrollmentAggregate struct {
	Enrollment
	Content []ContentProgress `json:"content"`
}

// Item returns the progress row for a content item.
func (a *EnrollmentAggregate) Item(contentItemID string) (ContentProgress, bool) {
	for _, cp := range a.Content {
		if cp.ContentItemID == contentItemID {
			return cp, true
		}
	}
	return ContentProgress{}, false
}

// CompletedAmong counts completed items whose id is in the course definition,
// so items removed from the course no longer count.
func (a *EnrollmentAggregate) CompletedAmong(def *CourseDefinition) int {
	if def == nil {
		return 0
	}
	count := 0
	for _, cp := range a.Content {
		if !cp.Completed {
			continue
		}
		if _, ok := def.FindContent(cp.ContentItemID); ok {
			count++
		}
	}
	return count
}

// ProgressWrite is the unit persisted by one optimistic enrollment update.
// Attempt and Content are optional.
type ProgressWrite struct {
	Enrollment      Enrollment
	ExpectedVersion int
	Attempt         *QuizAttempt
	Content         *ContentProgress
}

// EnrollmentOverview is the detail view returned to a student.
type EnrollmentOverview struct {
	EnrollmentDetail
	Content      []ContentProgress `json:"content"`
	Attempts     []QuizAttempt     `json:"attempts"`
	Certificates []Certificate     `json:"certificates"`
}

// RosterEntry is one row of a course progress export.
type RosterEntry struct {
	EnrollmentID      string     `db:"enrollment_id"`
	StudentID         string     `db:"student_id"`
	StudentName       string     `db:"student_name"`
	Progress          int        `db:"progress"`
	Completed         bool       `db:"completed"`
	LastAccessed      *time.Time `db:"last_accessed"`
	QuizAttempts      int        `db:"quiz_attempts"`
	CertificateIssued bool       `db:"certificate_issued"`
}

// CertificateSubject holds what is printed on a certificate for an enrollment.
type CertificateSubject struct {
	EnrollmentID string     `db:"enrollment_id"`
	StudentID    string     `db:"student_id"`
	StudentName  string     `db:"student_name"`
	CourseID     string     `db:"course_id"`
	CourseTitle  string     `db:"course_title"`
	Completed    bool       `db:"completed"`
	CompletedAt  *time.Time `db:"completed_at"`
}
