package course

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoQuestions = `[
	{"id": 1, "question": "First?", "options": [{"text": "A", "isCorrect": true}, {"text": "B", "isCorrect": false}]},
	{"id": "q2", "question": "Second?", "options": [{"text": "B", "isCorrect": false}, {"text": "C", "isCorrect": 1}]}
]`

func TestScoreExam(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		answers        map[string]interface{}
		wantScore      int
		wantMax        int
		wantStructured bool
		wantCorrect    map[string]string
		wantPercentage float64
	}{
		{
			name:    "all correct",
			content: twoQuestions, answers: map[string]interface{}{"1": "A", "q2": "C"},
			wantScore: 2, wantMax: 2, wantStructured: true, wantPercentage: 100,
			wantCorrect: map[string]string{"1": "A", "q2": "C"},
		},
		{
			name:    "half correct",
			content: twoQuestions, answers: map[string]interface{}{"1": "A", "q2": "B"},
			wantScore: 1, wantMax: 2, wantStructured: true, wantPercentage: 50,
			wantCorrect: map[string]string{"1": "A", "q2": "C"},
		},
		{
			name:    "unanswered and non-string answers",
			content: twoQuestions, answers: map[string]interface{}{"1": 1},
			wantScore: 0, wantMax: 2, wantStructured: true,
			wantCorrect: map[string]string{"1": "A", "q2": "C"},
		},
		{
			name:      "questions without id are not scored",
			content:   `[{"id": 0, "options": [{"text": "A", "isCorrect": true}]}, {"options": []}, {"id": 3, "options": [{"text": "X", "isCorrect": true}]}]`,
			answers:   map[string]interface{}{"3": "X"},
			wantScore: 1, wantMax: 1, wantStructured: true, wantPercentage: 100,
			wantCorrect: map[string]string{"3": "X"},
		},
		{
			name:      "no correct option",
			content:   `[{"id": 1, "options": [{"text": "A"}]}]`,
			answers:   map[string]interface{}{"1": "A"},
			wantScore: 0, wantMax: 1, wantStructured: true,
			wantCorrect: map[string]string{},
		},
		{
			name:      "free text",
			content:   "Write an essay about sorting algorithms.",
			answers:   map[string]interface{}{"1": "A", "2": "B", "3": "C"},
			wantScore: 0, wantMax: 3,
			wantCorrect: map[string]string{},
		},
		{
			name:      "json object",
			content:   `{"id": 1}`,
			answers:   map[string]interface{}{"1": "A"},
			wantScore: 0, wantMax: 1,
			wantCorrect: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ScoreExam(tt.content, tt.answers)
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.wantMax, res.MaxScore)
			assert.Equal(t, tt.wantStructured, res.Structured)
			assert.Equal(t, tt.wantCorrect, res.CorrectAnswers)
			assert.Equal(t, tt.wantPercentage, res.Percentage())
		})
	}
}

func TestExamResult_Percentage(t *testing.T) {
	assert.Equal(t, 33.3, ExamResult{Score: 1, MaxScore: 3}.Percentage())
	assert.Equal(t, 66.7, ExamResult{Score: 2, MaxScore: 3}.Percentage())
	assert.Equal(t, float64(0), ExamResult{}.Percentage())
}

func TestStripAnswerKeys(t *testing.T) {
	stripped := StripAnswerKeys(twoQuestions)
	assert.NotContains(t, stripped, "isCorrect")

	var questions []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stripped), &questions))
	require.Len(t, questions, 2)
	assert.Equal(t, "First?", questions[0]["question"])
	assert.Len(t, questions[1]["options"], 2)

	// scoring the stripped content finds no correct option
	res := ScoreExam(stripped, map[string]interface{}{"1": "A"})
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 2, res.MaxScore)

	assert.Equal(t, "plain text", StripAnswerKeys("plain text"))
}
