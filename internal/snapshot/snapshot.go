package snapshot

import "encoding/json"

// Document is the loosely-shaped authoritative session snapshot returned by
// the pull API. Producers disagree on field names and on which subset they
// send, so every field is optional; the reconciler decides what applies.
type Document struct {
	SessionCode string `json:"session_code"`
	Status      string `json:"status"`
	Started     bool   `json:"started"`
	Ended       bool   `json:"ended"`

	PlayerCount *int     `json:"player_count,omitempty"`
	Players     []Player `json:"players,omitempty"`

	// CurrentQuestion and Question are alternate wrappers for the same
	// payload; at most one is expected to be present.
	CurrentQuestion json.RawMessage `json:"current_question,omitempty"`
	Question        json.RawMessage `json:"question,omitempty"`
}

// Player is one roster entry as reported by the pull API.
type Player struct {
	ID          string `json:"player_id"`
	AltID       string `json:"id"`
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Score       *int   `json:"score,omitempty"`
	HasAnswered *bool  `json:"has_answered,omitempty"`
}

// PlayerID returns whichever id field the producer populated.
func (p Player) PlayerID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.AltID
}

// PlayerName returns whichever name field the producer populated.
func (p Player) PlayerName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// QuestionPayload returns the question payload regardless of wrapper key.
func (d Document) QuestionPayload() json.RawMessage {
	if len(d.CurrentQuestion) > 0 {
		return d.CurrentQuestion
	}
	return d.Question
}
