package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// TextPolicy decides how free-text answers are compared.
type TextPolicy string

// Supported free-text policies.
const (
	TextPolicyExactMatch TextPolicy = "exact-match"
	TextPolicySubstring  TextPolicy = "substring-contains"
)

// DefaultPassThreshold is the minimum score that passes a quiz.
const DefaultPassThreshold = 70

// ErrAnswersMalformed is returned when submitted answers cannot be decoded.
var ErrAnswersMalformed = errors.New("answers must be a JSON array or an object keyed by question id")

// ParseTextPolicy maps a config value to a TextPolicy; empty selects exact-match.
func ParseTextPolicy(raw string) (TextPolicy, error) {
	switch TextPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TextPolicyExactMatch:
		return TextPolicyExactMatch, nil
	case TextPolicySubstring:
		return TextPolicySubstring, nil
	default:
		return "", fmt.Errorf("unknown grading text policy %q", raw)
	}
}

// QuestionResult is the outcome for one question.
type QuestionResult struct {
	QuestionID string
	Index      int
	IsCorrect  bool
	Submitted  json.RawMessage
}

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Results []QuestionResult
	Score   int
	Correct int
	Total   int
	Passed  bool
}

// QuizGrader scores submissions. It holds no state besides its policy and is
// safe for concurrent use.
type QuizGrader struct {
	policy        TextPolicy
	passThreshold int
}

// NewQuizGrader constructs a grader. Thresholds outside 0..100 fall back to the default.
func NewQuizGrader(policy TextPolicy, passThreshold int) *QuizGrader {
	if policy == "" {
		policy = TextPolicyExactMatch
	}
	if passThreshold <= 0 || passThreshold > 100 {
		passThreshold = DefaultPassThreshold
	}
	return &QuizGrader{policy: policy, passThreshold: passThreshold}
}

// Grade scores answers positionally against questions. Missing answers are incorrect.
func (g *QuizGrader) Grade(questions []models.Question, answers []json.RawMessage) GradeResult {
	res := GradeResult{Total: len(questions), Results: make([]QuestionResult, 0, len(questions))}
	for i, q := range questions {
		var submitted json.RawMessage
		if i < len(answers) {
			submitted = answers[i]
		}
		ok := g.gradeOne(q, submitted)
		if ok {
			res.Correct++
		}
		res.Results = append(res.Results, QuestionResult{QuestionID: q.ID, Index: i, IsCorrect: ok, Submitted: submitted})
	}
	if res.Total == 0 {
		return res
	}
	res.Score = int(math.Round(float64(res.Correct) / float64(res.Total) * 100))
	res.Passed = res.Score >= g.passThreshold
	return res
}

func (g *QuizGrader) gradeOne(q models.Question, submitted json.RawMessage) bool {
	if isNullJSON(submitted) {
		return false
	}
	switch q.Type {
	case models.QuestionMCQSingle:
		want, ok := parseIndex(q.CorrectAnswer)
		if !ok {
			return false
		}
		got, ok := parseIndex(submitted)
		return ok && got == want
	case models.QuestionMCQMultiple:
		want, ok := parseIndexList(q.CorrectAnswer)
		if !ok {
			return false
		}
		got, ok := parseIndexList(submitted)
		return ok && sameIndexSet(want, got)
	case models.QuestionShortAnswer, models.QuestionBroadAnswer:
		want, ok := parseText(q.CorrectAnswer)
		if !ok {
			return false
		}
		got, ok := parseText(submitted)
		return ok && g.matchText(want, got)
	default:
		return false
	}
}

func (g *QuizGrader) matchText(expected, submitted string) bool {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return false
	}
	submitted = strings.ToLower(strings.TrimSpace(submitted))
	if g.policy == TextPolicySubstring {
		return strings.Contains(submitted, expected)
	}
	return submitted == expected
}

// sameIndexSet is exact set equality: equal length, no duplicates, every value expected.
func sameIndexSet(want, got []int) bool {
	if len(want) != len(got) {
		return false
	}
	expected := make(map[int]struct{}, len(want))
	for _, v := range want {
		expected[v] = struct{}{}
	}
	seen := make(map[int]struct{}, len(got))
	for _, v := range got {
		if _, dup := seen[v]; dup {
			return false
		}
		if _, ok := expected[v]; !ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

// parseIndex accepts an integral JSON number or a string holding one.
func parseIndex(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if v, err := strconv.Atoi(n.String()); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func parseIndexList(raw json.RawMessage) ([]int, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		v, ok := parseIndex(item)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// parseText accepts a JSON string or a number rendered as text.
func parseText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// DecodeAnswers normalises a submission into one entry per question. Arrays are
// positional. Objects are keyed by question id, falling back to the numeric
// index as a string. With requireArray only arrays are accepted.
func DecodeAnswers(raw json.RawMessage, questions []models.Question, requireArray bool) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNullJSON(trimmed) {
		return nil, ErrAnswersMalformed
	}
	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, ErrAnswersMalformed
		}
		return list, nil
	case '{':
		if requireArray {
			return nil, ErrAnswersMalformed
		}
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, ErrAnswersMalformed
		}
		out := make([]json.RawMessage, len(questions))
		for i, q := range questions {
			if v, ok := keyed[q.ID]; ok && q.ID != "" {
				out[i] = v
				continue
			}
			out[i] = keyed[strconv.Itoa(i)]
		}
		return out, nil
	default:
		return nil, ErrAnswersMalformed
	}
}

func isNullJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
