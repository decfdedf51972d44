package dispatch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/mkbrennan/partyquiz/internal/codec"
	"github.com/mkbrennan/partyquiz/internal/transport"
)

type recordingSender struct {
	sent [][]byte
	err  error
}

func (s *recordingSender) Send(data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, data)
	return nil
}

func TestVerbsEncodeExpectedEnvelopes(t *testing.T) {
	sender := &recordingSender{}
	d := New(sender, clockwork.NewFakeClock())

	cases := []struct {
		name string
		call func() error
		verb string
	}{
		{"start", d.StartRound, codec.CommandStartGame},
		{"next", d.AdvanceQuestion, codec.CommandNextQuestion},
		{"previous", d.PreviousQuestion, codec.CommandPreviousQuestion},
		{"end", d.EndRound, codec.CommandEndGame},
		{"buzzer", d.PressBuzzer, codec.CommandBuzzerPress},
		{"stats", d.RequestStats, codec.CommandGetSessionStats},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("%s: %v", tc.verb, err)
			}
			var env codec.Envelope
			if err := json.Unmarshal(sender.sent[i], &env); err != nil {
				t.Fatalf("unmarshal sent frame: %v", err)
			}
			if env.Type != tc.verb {
				t.Fatalf("sent verb %q, want %q", env.Type, tc.verb)
			}
		})
	}
}

func TestSubmitAnswerCarriesPayload(t *testing.T) {
	sender := &recordingSender{}
	d := New(sender, clockwork.NewFakeClock())

	if err := d.SubmitAnswer("q7", "42"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	var env codec.Envelope
	if err := json.Unmarshal(sender.sent[0], &env); err != nil {
		t.Fatalf("unmarshal sent frame: %v", err)
	}
	var payload codec.SubmitAnswerPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.QuestionID != "q7" || payload.Answer != "42" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestNotConnectedSurfacesToCaller(t *testing.T) {
	sender := &recordingSender{err: transport.ErrNotConnected}
	d := New(sender, clockwork.NewFakeClock())

	err := d.SubmitAnswer("q1", "B")
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected in chain", err)
	}
}
