package trivia

// Player represents one participant in the session roster.
type Player struct {
	ID string `json:"player_id"`

	// DisplayName is sticky: an event lacking a name must not blank out a
	// previously known name.
	DisplayName string `json:"display_name"`

	// HasAnswered is reset to false whenever the current question changes.
	HasAnswered bool `json:"has_answered_current_question"`

	// Score is last-write-wins from the authoritative snapshot only; push
	// events never carry authoritative score deltas.
	Score int `json:"score"`
}

// Clone returns a copy of the player.
func (p Player) Clone() Player {
	return p
}
