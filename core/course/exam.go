package course

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/academia/lms/core"
)

// ExamResult is the outcome of scoring submitted answers against an exam lesson's content.
type ExamResult struct {
	Score          int
	MaxScore       int
	CorrectAnswers map[string]string // question id -> correct option text
	// Structured is false when the content is not a question list and the degraded scoring was applied.
	Structured bool
}

// Percentage is Score/MaxScore as a percentage rounded to one decimal, 0 when there is nothing to score.
func (r ExamResult) Percentage() float64 {
	if r.MaxScore == 0 {
		return 0
	}
	return core.Round1(float64(r.Score) / float64(r.MaxScore) * 100)
}

// ScoreExam grades answers (question id -> answer) against content, a JSON list of questions:
//
//	[{"id": 1, "question": "...", "options": [{"text": "A", "isCorrect": true}, ...]}, ...]
//
// Every question with a non-empty id is worth one point, earned when the answer equals the correct option text.
// Content that is not a question list is scored 0 out of the number of submitted answers.
func ScoreExam(content string, answers map[string]interface{}) ExamResult {
	res := ExamResult{CorrectAnswers: make(map[string]string)}

	questions, ok := parseQuestions(content)
	if !ok {
		res.MaxScore = len(answers)
		return res
	}
	res.Structured = true

	for _, raw := range questions {
		q, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		key := questionKey(q["id"])
		if key == "" {
			continue
		}
		res.MaxScore++

		text, found := correctOption(q["options"])
		if !found {
			continue
		}
		res.CorrectAnswers[key] = text
		if answer, ok := answers[key].(string); ok && answer == text {
			res.Score++
		}
	}
	return res
}

// StripAnswerKeys removes the "isCorrect" flags from exam content. Unparseable content is returned as is.
func StripAnswerKeys(content string) string {
	questions, ok := parseQuestions(content)
	if !ok {
		return content
	}
	for _, raw := range questions {
		q, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		opts, ok := q["options"].([]interface{})
		if !ok {
			continue
		}
		for _, rawOpt := range opts {
			if opt, ok := rawOpt.(map[string]interface{}); ok {
				delete(opt, "isCorrect")
			}
		}
	}
	stripped, err := json.Marshal(questions)
	if err != nil {
		return content
	}
	return string(stripped)
}

func parseQuestions(content string) ([]interface{}, bool) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var questions []interface{}
	if err := dec.Decode(&questions); err != nil {
		return nil, false
	}
	return questions, questions != nil
}

// questionKey returns the answers map key of a question id, or "" for empty ids (null, "", 0, false).
func questionKey(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case json.Number:
		if f, ok := new(big.Float).SetString(v.String()); !ok || f.Sign() == 0 {
			return ""
		}
		return v.String()
	case bool:
		if v {
			return "True"
		}
	}
	return ""
}

// correctOption returns the text of the first option flagged as correct.
func correctOption(options interface{}) (string, bool) {
	opts, ok := options.([]interface{})
	if !ok {
		return "", false
	}
	for _, rawOpt := range opts {
		opt, ok := rawOpt.(map[string]interface{})
		if !ok || !truthy(opt["isCorrect"]) {
			continue
		}
		text, _ := opt["text"].(string)
		return text, true
	}
	return "", false
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, ok := new(big.Float).SetString(val.String())
		return ok && f.Sign() != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	}
	return false
}
