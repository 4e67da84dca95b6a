package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ContentType classifies a course content item.
type ContentType string

// Content item types.
const (
	ContentTutorial ContentType = "tutorial"
	ContentQuiz     ContentType = "quiz"
	ContentLive     ContentType = "live"
)

// QuestionType selects the grading rule for a question.
type QuestionType string

// Question types.
const (
	QuestionMCQSingle   QuestionType = "mcq-single"
	QuestionMCQMultiple QuestionType = "mcq-multiple"
	QuestionShortAnswer QuestionType = "short-answer"
	QuestionBroadAnswer QuestionType = "broad-answer"
)

// Question is one quiz question. CorrectAnswer holds an index for mcq-single,
// an index list for mcq-multiple and a string for free-text questions.
type Question struct {
	ID            string          `json:"id"`
	Type          QuestionType    `json:"type"`
	Prompt        string          `json:"prompt"`
	Options       []string        `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
}

// Questions is the JSONB-backed question list of a quiz item.
type Questions []Question

// Scan implements sql.Scanner.
func (q *Questions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*q = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("questions: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*q = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]Question)(q))
}

// Value implements driver.Valuer.
func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		return nil, nil
	}
	b, err := json.Marshal([]Question(q))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Course is a published unit of learning owned by a teacher.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Published   bool      `db:"published" json:"published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ContentItem is an ordered element of a course.
type ContentItem struct {
	ID        string      `db:"id" json:"id"`
	CourseID  string      `db:"course_id" json:"course_id"`
	Position  int         `db:"position" json:"position"`
	Type      ContentType `db:"type" json:"type"`
	Title     string      `db:"title" json:"title"`
	Questions Questions   `db:"questions" json:"questions,omitempty"`
}

// CourseDefinition is a course together with its ordered content.
type CourseDefinition struct {
	Course  Course        `json:"course"`
	Content []ContentItem `json:"content"`
}

// TotalContent returns the number of content items counted towards progress.
func (d *CourseDefinition) TotalContent() int {
	if d == nil {
		return 0
	}
	return len(d.Content)
}

// FindContent returns the content item with id.
func (d *CourseDefinition) FindContent(id string) (*ContentItem, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Content {
		if d.Content[i].ID == id {
			return &d.Content[i], true
		}
	}
	return nil, false
}
