package reconcile

import (
	"encoding/json"

	"github.com/mkbrennan/partyquiz/internal/trivia"
)

// rawQuestion covers every question shape the message producers are known
// to emit. Field subsets vary per event type, so everything is optional.
type rawQuestion struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`

	Prompt     string `json:"prompt"`
	PromptText string `json:"prompt_text"`
	Text       string `json:"text"`

	AnswerMode string `json:"answer_mode"`
	Mode       string `json:"mode"`

	DisplayOptions []string `json:"display_options"`
	Options        []string `json:"options"`
	Choices        []string `json:"choices"`

	CorrectAnswerIndex *int `json:"correct_answer_index"`
	CorrectIndex       *int `json:"correct_index"`

	CorrectAnswerText string `json:"correct_answer_text"`
	CorrectAnswer     string `json:"correct_answer"`

	Difficulty string `json:"difficulty"`
}

// questionWrapper matches payloads that nest the question one level down.
type questionWrapper struct {
	CurrentQuestion json.RawMessage `json:"current_question"`
	Question        json.RawMessage `json:"question"`
}

func (q rawQuestion) id() string {
	if q.ID != "" {
		return q.ID
	}
	return q.QuestionID
}

func (q rawQuestion) prompt() string {
	for _, s := range []string{q.PromptText, q.Prompt, q.Text} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (q rawQuestion) options() []string {
	for _, opts := range [][]string{q.DisplayOptions, q.Options, q.Choices} {
		if len(opts) > 0 {
			return opts
		}
	}
	return nil
}

func (q rawQuestion) modeHint() string {
	if q.AnswerMode != "" {
		return q.AnswerMode
	}
	return q.Mode
}

func (q rawQuestion) correctIndex() *int {
	if q.CorrectAnswerIndex != nil {
		return q.CorrectAnswerIndex
	}
	return q.CorrectIndex
}

func (q rawQuestion) correctText() string {
	if q.CorrectAnswerText != "" {
		return q.CorrectAnswerText
	}
	return q.CorrectAnswer
}

// parseQuestion recognizes a question-like payload structurally: either the
// object itself carries an identifier, or it wraps one under a
// current_question/question key.
func parseQuestion(raw json.RawMessage) (rawQuestion, bool) {
	if len(raw) == 0 {
		return rawQuestion{}, false
	}
	var rq rawQuestion
	if err := json.Unmarshal(raw, &rq); err == nil && rq.id() != "" {
		return rq, true
	}

	var wrapper questionWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return rawQuestion{}, false
	}
	inner := wrapper.CurrentQuestion
	if len(inner) == 0 {
		inner = wrapper.Question
	}
	if len(inner) == 0 {
		return rawQuestion{}, false
	}
	if err := json.Unmarshal(inner, &rq); err != nil || rq.id() == "" {
		return rawQuestion{}, false
	}
	return rq, true
}

// mergeQuestionPayload folds a question-like payload into the view.
// A change of question id resets every player's answered flag; an update
// for the same id obeys the non-regressive rules for sticky fields.
func mergeQuestionPayload(next *trivia.SessionView, raw json.RawMessage) bool {
	rq, ok := parseQuestion(raw)
	if !ok {
		return false
	}

	cur := next.CurrentQuestion
	if cur == nil || cur.ID != rq.id() {
		q := trivia.Question{
			ID:                 rq.id(),
			PromptText:         rq.prompt(),
			CorrectAnswerIndex: copyIndex(rq.correctIndex()),
			CorrectAnswerText:  rq.correctText(),
			Difficulty:         trivia.NormalizeDifficulty(rq.Difficulty),
		}
		if opts := rq.options(); len(opts) > 0 {
			q.DisplayOptions = append([]string(nil), opts...)
		}
		if mode, ok := modeFromHint(rq.modeHint()); ok {
			q.AnswerMode = mode
		} else if len(q.DisplayOptions) > 0 {
			q.AnswerMode = trivia.AnswerModeMultipleChoice
		} else {
			q.AnswerMode = trivia.AnswerModeFreeText
		}
		deriveCorrectText(&q)
		next.CurrentQuestion = &q
		for i := range next.Players {
			next.Players[i].HasAnswered = false
		}
		return true
	}

	changed := false
	if p := rq.prompt(); p != "" && p != cur.PromptText {
		cur.PromptText = p
		changed = true
	}
	if opts := rq.options(); len(opts) > 0 && !equalStrings(opts, cur.DisplayOptions) {
		cur.DisplayOptions = append([]string(nil), opts...)
		changed = true
	}
	if mode, ok := modeFromHint(rq.modeHint()); ok {
		if mode != cur.AnswerMode {
			cur.AnswerMode = mode
			changed = true
		}
	} else if len(cur.DisplayOptions) > 0 && cur.AnswerMode != trivia.AnswerModeMultipleChoice {
		cur.AnswerMode = trivia.AnswerModeMultipleChoice
		changed = true
	}
	if idx := rq.correctIndex(); idx != nil && (cur.CorrectAnswerIndex == nil || *cur.CorrectAnswerIndex != *idx) {
		cur.CorrectAnswerIndex = copyIndex(idx)
		changed = true
	}
	if t := rq.correctText(); t != "" && t != cur.CorrectAnswerText {
		cur.CorrectAnswerText = t
		changed = true
	}
	if deriveCorrectText(cur) {
		changed = true
	}
	if d := trivia.NormalizeDifficulty(rq.Difficulty); d != "" && d != cur.Difficulty {
		cur.Difficulty = d
		changed = true
	}
	return changed
}

// deriveCorrectText computes displayOptions[correctAnswerIndex] when the
// answer text is not already known. Reports whether it set the field.
func deriveCorrectText(q *trivia.Question) bool {
	if q.CorrectAnswerText != "" || q.CorrectAnswerIndex == nil {
		return false
	}
	idx := *q.CorrectAnswerIndex
	if idx < 0 || idx >= len(q.DisplayOptions) {
		return false
	}
	q.CorrectAnswerText = q.DisplayOptions[idx]
	return true
}

func modeFromHint(hint string) (trivia.AnswerMode, bool) {
	switch hint {
	case "multiple_choice", "multipleChoice", "choice", "mcq":
		return trivia.AnswerModeMultipleChoice, true
	case "free_text", "freeText", "text", "open":
		return trivia.AnswerModeFreeText, true
	}
	return "", false
}

func copyIndex(idx *int) *int {
	if idx == nil {
		return nil
	}
	v := *idx
	return &v
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
