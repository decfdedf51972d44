package trivia

import "encoding/json"

// Phase represents the lifecycle phase of a game session.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseActive  Phase = "active"
	PhasePaused  Phase = "paused"
	PhaseEnded   Phase = "ended"
)

// Terminal reports whether no further lifecycle transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseEnded
}

// ConnectivityState is the UI-facing view of the transport connection.
type ConnectivityState string

const (
	ConnectivityConnecting   ConnectivityState = "connecting"
	ConnectivityOpen         ConnectivityState = "open"
	ConnectivityReconnecting ConnectivityState = "reconnecting"
	ConnectivityDisconnected ConnectivityState = "disconnected"
)

// SessionView is the canonical, UI-facing snapshot of a game session.
// It is owned by the reconciler: each accepted mutation produces a new
// value with a higher Version, the previous value is never mutated.
type SessionView struct {
	SessionCode string `json:"session_code"`
	Phase       Phase  `json:"phase"`

	CurrentQuestion *Question `json:"current_question,omitempty"`
	Players         []Player  `json:"players"`

	// AuthoritativePlayerCount is the last player count reported by the
	// pull snapshot, used to detect roster sync lag before a start.
	AuthoritativePlayerCount int `json:"authoritative_player_count"`

	// Stats is an opaque diagnostics blob, last write wins.
	Stats json.RawMessage `json:"stats,omitempty"`

	Version uint64 `json:"version"`
}

// NewSessionView returns the empty view observed at session creation.
func NewSessionView(code string) SessionView {
	return SessionView{
		SessionCode: code,
		Phase:       PhaseWaiting,
		Players:     []Player{},
	}
}

// Clone returns a deep copy of the view so the reconciler can apply a
// read-modify-replace without aliasing the published value.
func (v SessionView) Clone() SessionView {
	out := v
	if v.CurrentQuestion != nil {
		q := v.CurrentQuestion.Clone()
		out.CurrentQuestion = &q
	}
	out.Players = make([]Player, len(v.Players))
	copy(out.Players, v.Players)
	for i := range out.Players {
		out.Players[i] = v.Players[i].Clone()
	}
	if v.Stats != nil {
		out.Stats = make(json.RawMessage, len(v.Stats))
		copy(out.Stats, v.Stats)
	}
	return out
}

// FindPlayer returns the index of the player with the given id, or -1.
func (v SessionView) FindPlayer(playerID string) int {
	for i := range v.Players {
		if v.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}
