package codec

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeCommandStampsTimestamp(t *testing.T) {
	sentAt := time.UnixMilli(1700000000123)
	raw, err := EncodeCommand(CommandStartGame, nil, sentAt)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("round-trip: %v", err)
	}
	if env.Type != CommandStartGame {
		t.Fatalf("type = %q", env.Type)
	}
	if env.Timestamp != 1700000000123 {
		t.Fatalf("timestamp = %d", env.Timestamp)
	}
	if env.Data != nil {
		t.Fatalf("data = %s, want omitted", env.Data)
	}
}

func TestEncodeCommandWithPayload(t *testing.T) {
	raw, err := EncodeCommand(CommandSubmitAnswer, SubmitAnswerPayload{
		Answer:     "B",
		QuestionID: "q1",
	}, time.Now())
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("round-trip: %v", err)
	}
	var payload SubmitAnswerPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Answer != "B" || payload.QuestionID != "q1" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "known event", raw: `{"type":"player_joined","data":{"player_id":"p1"}}`, want: EventPlayerJoined},
		{name: "unknown type passes through", raw: `{"type":"brand_new_event"}`, want: "brand_new_event"},
		{name: "missing type", raw: `{"data":{}}`, wantErr: true},
		{name: "malformed json", raw: `{"type":`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Decode([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Decode(%q) succeeded, want error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q): %v", tc.raw, err)
			}
			if env.Type != tc.want {
				t.Fatalf("type = %q, want %q", env.Type, tc.want)
			}
		})
	}
}
