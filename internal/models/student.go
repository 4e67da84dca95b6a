package models

import "time"

// Student represents a learner account.
type Student struct {
	ID                  string     `db:"id" json:"id"`
	FullName            string     `db:"full_name" json:"full_name"`
	Email               string     `db:"email" json:"email"`
	Active              bool       `db:"active" json:"active"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// WishlistItem is a course bookmarked by a student.
type WishlistItem struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	CourseTitle string    `db:"course_title" json:"course_title"`
	AddedAt     time.Time `db:"added_at" json:"added_at"`
}
