package trivia

import "strings"

// AnswerMode describes how a question is answered.
type AnswerMode string

const (
	AnswerModeMultipleChoice AnswerMode = "multiple_choice"
	AnswerModeFreeText       AnswerMode = "free_text"
)

// Difficulty is the normalized difficulty rating of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// NormalizeDifficulty maps any source casing onto the canonical values.
// Unrecognized input is dropped so the enum stays closed; a known value
// already on the question is never overwritten by the empty result.
func NormalizeDifficulty(raw string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	}
	return ""
}

// Question is the internal model every question-like payload normalizes to.
type Question struct {
	ID         string     `json:"id"`
	PromptText string     `json:"prompt_text"`
	AnswerMode AnswerMode `json:"answer_mode"`

	// DisplayOptions is sticky: once populated for a question id, a later
	// partial update without options must not clear it.
	DisplayOptions []string `json:"display_options,omitempty"`

	// CorrectAnswerIndex indexes DisplayOptions when known.
	CorrectAnswerIndex *int `json:"correct_answer_index,omitempty"`

	// CorrectAnswerText is sticky; derived from CorrectAnswerIndex and
	// DisplayOptions when the payload does not carry it.
	CorrectAnswerText string `json:"correct_answer_text,omitempty"`

	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	out := q
	if q.DisplayOptions != nil {
		out.DisplayOptions = make([]string, len(q.DisplayOptions))
		copy(out.DisplayOptions, q.DisplayOptions)
	}
	if q.CorrectAnswerIndex != nil {
		idx := *q.CorrectAnswerIndex
		out.CorrectAnswerIndex = &idx
	}
	return out
}
