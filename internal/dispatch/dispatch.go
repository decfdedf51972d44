// Package dispatch exposes the command verbs the UI layer may issue.
// Commands are fire-and-forget: confirmation arrives asynchronously as an
// inbound event, never as a direct reply.
package dispatch

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/codec"
)

// Sender writes one encoded envelope to the push connection. It reports
// transport.ErrNotConnected while the connection is not open.
type Sender interface {
	Send(data []byte) error
}

// Dispatcher encodes and sends command verbs.
type Dispatcher struct {
	sender Sender
	clock  clockwork.Clock
}

// New creates a dispatcher on top of a sender.
func New(sender Sender, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{sender: sender, clock: clock}
}

// StartRound asks the server to start the round.
func (d *Dispatcher) StartRound() error {
	return d.send(codec.CommandStartGame, nil)
}

// AdvanceQuestion moves the session to the next question.
func (d *Dispatcher) AdvanceQuestion() error {
	return d.send(codec.CommandNextQuestion, nil)
}

// PreviousQuestion moves the session back one question.
func (d *Dispatcher) PreviousQuestion() error {
	return d.send(codec.CommandPreviousQuestion, nil)
}

// EndRound asks the server to end the game.
func (d *Dispatcher) EndRound() error {
	return d.send(codec.CommandEndGame, nil)
}

// SubmitAnswer submits an answer value for a question.
func (d *Dispatcher) SubmitAnswer(questionID, value string) error {
	return d.send(codec.CommandSubmitAnswer, codec.SubmitAnswerPayload{
		Answer:     value,
		QuestionID: questionID,
	})
}

// PressBuzzer signals a buzzer press for the local player.
func (d *Dispatcher) PressBuzzer() error {
	return d.send(codec.CommandBuzzerPress, nil)
}

// RequestStats asks the server to push a session_stats event.
func (d *Dispatcher) RequestStats() error {
	return d.send(codec.CommandGetSessionStats, nil)
}

// send encodes a verb and writes it. The caller receives the sender's
// not-connected condition unchanged so it can surface a retryable error;
// it is never swallowed here.
func (d *Dispatcher) send(verb string, payload any) error {
	raw, err := codec.EncodeCommand(verb, payload, d.clock.Now())
	if err != nil {
		return err
	}
	if err := d.sender.Send(raw); err != nil {
		return fmt.Errorf("dispatch %s: %w", verb, err)
	}
	log.Debug().Str("verb", verb).Msg("command dispatched")
	return nil
}
