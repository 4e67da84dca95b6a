package models

import "time"

// Certificate is the issued proof of course completion. One per enrollment.
type Certificate struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Serial       string    `db:"serial" json:"serial"`
	URL          string    `db:"url" json:"url"`
	IssuedAt     time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}

// CertificateDetail adds course context for listings.
type CertificateDetail struct {
	Certificate
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
}
