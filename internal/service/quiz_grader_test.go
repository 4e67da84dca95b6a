package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/models"
)

func question(id string, typ models.QuestionType, correct string) models.Question {
	return models.Question{ID: id, Type: typ, CorrectAnswer: json.RawMessage(correct)}
}

func answers(raw ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out
}

func TestQuizGraderMCQSingle(t *testing.T) {
	g := NewQuizGrader(TextPolicyExactMatch, 70)
	qs := []models.Question{question("q1", models.QuestionMCQSingle, "2")}

	cases := map[string]bool{
		`2`:       true,
		`"2"`:     true,
		`2.0`:     true,
		`1`:       false,
		`3`:       false,
		`"two"`:   false,
		`[2]`:     false,
		`true`:    false,
		`null`:    false,
		`1e300`:   false,
		`-1e300`:  false,
		`"1e300"`: false,
		`4.3e9`:   false,
	}
	for submitted, want := range cases {
		res := g.Grade(qs, answers(submitted))
		assert.Equal(t, want, res.Results[0].IsCorrect, submitted)
	}
}

func TestQuizGraderMCQMultiple(t *testing.T) {
	g := NewQuizGrader(TextPolicyExactMatch, 70)
	qs := []models.Question{question("q1", models.QuestionMCQMultiple, "[0,2]")}

	cases := map[string]bool{
		`[0,2]`:   true,
		`[2,0]`:   true,
		`["2",0]`: true,
		`[0]`:     false,
		`[0,1,2]`: false,
		`[0,0]`:   false,
		`[2,2]`:   false,
		`[]`:      false,
		`2`:       false,
		`"0,2"`:   false,
	}
	for submitted, want := range cases {
		res := g.Grade(qs, answers(submitted))
		assert.Equal(t, want, res.Results[0].IsCorrect, submitted)
	}
}

func TestQuizGraderTextPolicies(t *testing.T) {
	qs := []models.Question{question("q1", models.QuestionShortAnswer, `"Paris"`)}

	exact := NewQuizGrader(TextPolicyExactMatch, 70)
	assert.True(t, exact.Grade(qs, answers(`"  paris "`)).Results[0].IsCorrect)
	assert.False(t, exact.Grade(qs, answers(`"Paris, France"`)).Results[0].IsCorrect)

	contains := NewQuizGrader(TextPolicySubstring, 70)
	assert.True(t, contains.Grade(qs, answers(`"It is PARIS, France"`)).Results[0].IsCorrect)
	assert.False(t, contains.Grade(qs, answers(`"London"`)).Results[0].IsCorrect)

	empty := []models.Question{question("q1", models.QuestionBroadAnswer, `""`)}
	assert.False(t, contains.Grade(empty, answers(`"anything"`)).Results[0].IsCorrect)
	assert.False(t, exact.Grade(empty, answers(`""`)).Results[0].IsCorrect)
}

func TestQuizGraderScoreAndPass(t *testing.T) {
	g := NewQuizGrader(TextPolicyExactMatch, 70)
	qs := []models.Question{
		question("q1", models.QuestionMCQSingle, "1"),
		question("q2", models.QuestionShortAnswer, `"Paris"`),
	}

	res := g.Grade(qs, answers(`1`, `"paris"`))
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 2, res.Total)
	assert.True(t, res.Passed)

	res = g.Grade(qs, answers(`1`))
	assert.Equal(t, 50, res.Score)
	assert.False(t, res.Passed)
	assert.False(t, res.Results[1].IsCorrect)

	three := append(qs, question("q3", models.QuestionMCQSingle, "0"))
	res = g.Grade(three, answers(`1`, `"paris"`, `1`))
	assert.Equal(t, 67, res.Score)
	assert.False(t, res.Passed)
}

func TestQuizGraderNoQuestions(t *testing.T) {
	res := NewQuizGrader(TextPolicyExactMatch, 70).Grade(nil, answers(`1`))
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 0, res.Total)
}

func TestQuizGraderUnknownQuestionType(t *testing.T) {
	qs := []models.Question{question("q1", "essay", `"x"`)}
	res := NewQuizGrader(TextPolicyExactMatch, 70).Grade(qs, answers(`"x"`))
	assert.False(t, res.Results[0].IsCorrect)
}

func TestDecodeAnswers(t *testing.T) {
	qs := []models.Question{{ID: "q1"}, {ID: "q2"}, {ID: ""}}

	list, err := DecodeAnswers(json.RawMessage(`[1, "a"]`), qs, true)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	keyed, err := DecodeAnswers(json.RawMessage(`{"q2": "b", "0": 3, "2": [1]}`), qs, false)
	require.NoError(t, err)
	require.Len(t, keyed, 3)
	assert.JSONEq(t, `3`, string(keyed[0]))
	assert.JSONEq(t, `"b"`, string(keyed[1]))
	assert.JSONEq(t, `[1]`, string(keyed[2]))

	_, err = DecodeAnswers(json.RawMessage(`{"q1": 1}`), qs, true)
	assert.ErrorIs(t, err, ErrAnswersMalformed)

	for _, bad := range []string{``, `null`, `1`, `"x"`, `[1,`} {
		_, err := DecodeAnswers(json.RawMessage(bad), qs, false)
		assert.ErrorIs(t, err, ErrAnswersMalformed, bad)
	}
}

func TestParseTextPolicy(t *testing.T) {
	p, err := ParseTextPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TextPolicyExactMatch, p)

	p, err = ParseTextPolicy(" Substring-Contains ")
	require.NoError(t, err)
	assert.Equal(t, TextPolicySubstring, p)

	_, err = ParseTextPolicy("fuzzy")
	assert.Error(t, err)
}
