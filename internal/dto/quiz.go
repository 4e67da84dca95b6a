package dto

import "encoding/json"

// LegacySubmitQuizRequest captures POST /student/submit-quiz payload.
// Answers may be an array keyed by question index or an object keyed by question id.
type LegacySubmitQuizRequest struct {
	CourseID      string          `json:"courseId" validate:"required"`
	ContentItemID string          `json:"contentItemId" validate:"required"`
	StudentID     string          `json:"studentId" validate:"required"`
	Answers       json.RawMessage `json:"answers" validate:"required"`
}

// LegacySubmitQuizResponse is the response shape of the legacy endpoint.
type LegacySubmitQuizResponse struct {
	Success        bool    `json:"success"`
	Score          int     `json:"score"`
	Passed         bool    `json:"passed"`
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	CertificateURL *string `json:"certificateUrl"`
}

// SubmitQuizRequest captures the authenticated submission; answers must be an array.
type SubmitQuizRequest struct {
	Answers json.RawMessage `json:"answers" validate:"required"`
}

// QuestionResult reports grading of a single question.
type QuestionResult struct {
	QuestionID string          `json:"questionId"`
	Index      int             `json:"index"`
	IsCorrect  bool            `json:"isCorrect"`
	Submitted  json.RawMessage `json:"submitted"`
}

// SubmitQuizResponse is returned by the authenticated quiz endpoint.
type SubmitQuizResponse struct {
	Success        bool             `json:"success"`
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectAnswers int              `json:"correctAnswers"`
	Results        []QuestionResult `json:"results"`
	Progress       int              `json:"progress"`
	Completed      bool             `json:"completed"`
	CertificateURL *string          `json:"certificateUrl,omitempty"`
}
