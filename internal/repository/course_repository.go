package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// CourseRepository reads course definitions.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns the course row. sql.ErrNoRows is returned unwrapped.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, teacher_id, published, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDefinition returns a course with its content ordered by position.
func (r *CourseRepository) FindDefinition(ctx context.Context, id string) (*models.CourseDefinition, error) {
	course, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	const query = `SELECT id, course_id, position, type, title, questions FROM course_content_items
        WHERE course_id = $1 ORDER BY position ASC, id ASC`
	var items []models.ContentItem
	if err := r.db.SelectContext(ctx, &items, query, id); err != nil {
		return nil, fmt.Errorf("list course content: %w", err)
	}
	return &models.CourseDefinition{Course: *course, Content: items}, nil
}
