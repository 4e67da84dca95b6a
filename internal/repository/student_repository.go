package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// StudentRepository handles persistence of students and their wishlists.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID. sql.ErrNoRows is returned unwrapped.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, email, active, failed_login_attempts, locked_until, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// AddToWishlist bookmarks a course. Adding an existing entry is a no-op.
func (r *StudentRepository) AddToWishlist(ctx context.Context, studentID, courseID string) error {
	const query = `INSERT INTO student_wishlist (student_id, course_id, added_at) VALUES ($1, $2, $3)
        ON CONFLICT (student_id, course_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, studentID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add wishlist entry: %w", err)
	}
	return nil
}

// RemoveFromWishlist deletes a bookmark and reports whether one existed.
func (r *StudentRepository) RemoveFromWishlist(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `DELETE FROM student_wishlist WHERE student_id = $1 AND course_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("remove wishlist entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove wishlist entry rows: %w", err)
	}
	return affected > 0, nil
}

// ListWishlist returns a student's bookmarks, newest first.
func (r *StudentRepository) ListWishlist(ctx context.Context, studentID string) ([]models.WishlistItem, error) {
	const query = `SELECT w.student_id, w.course_id, c.title AS course_title, w.added_at
        FROM student_wishlist w JOIN courses c ON c.id = w.course_id
        WHERE w.student_id = $1 ORDER BY w.added_at DESC`
	var items []models.WishlistItem
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	return items, nil
}
