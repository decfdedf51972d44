package codec

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire format shared by commands and events:
// a JSON object {type, data?, timestamp?}.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Outbound command verbs.
const (
	CommandStartGame        = "start_game"
	CommandNextQuestion     = "next_question"
	CommandPreviousQuestion = "previous_question"
	CommandEndGame          = "end_game"
	CommandSubmitAnswer     = "submit_answer"
	CommandBuzzerPress      = "buzzer_press"
	CommandGetSessionStats  = "get_session_stats"
	CommandPing             = "ping"
)

// Inbound event types. The set is non-exhaustive: the server may introduce
// new types at any time, so unknown values are forwarded, not rejected.
const (
	EventInitialState    = "initial_state"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventGameStarted     = "game_started"
	EventGameEnded       = "game_ended"
	EventGamePaused      = "game_paused"
	EventGameResumed     = "game_resumed"
	EventQuestionStarted = "question_started"
	EventNewQuestion     = "new_question"
	EventPlayerAnswered  = "player_answered"
	EventSessionStats    = "session_stats"
	EventPong            = "pong"
	EventError           = "error"
)

// SubmitAnswerPayload is the data for a submit_answer command.
type SubmitAnswerPayload struct {
	Answer     string `json:"answer"`
	QuestionID string `json:"question_id"`
}

// EncodeCommand wraps a verb and payload into a wire envelope, stamping the
// send time when the caller did not supply one.
func EncodeCommand(verb string, payload any, sentAt time.Time) ([]byte, error) {
	env := Envelope{
		Type:      verb,
		Timestamp: sentAt.UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", verb, err)
		}
		env.Data = data
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", verb, err)
	}
	return raw, nil
}

// Decode parses raw inbound text into an envelope. The caller is expected to
// log and drop on error; a malformed message is never fatal.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}
