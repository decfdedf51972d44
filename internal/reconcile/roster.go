package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/snapshot"
	"github.com/mkbrennan/partyquiz/internal/trivia"
)

// rawPlayerEvent covers the player_joined/player_left/player_answered
// payload shapes.
type rawPlayerEvent struct {
	PlayerID    string `json:"player_id"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	PlayerName  string `json:"player_name"`
	QuestionID  string `json:"question_id"`
}

func (p rawPlayerEvent) playerID() string {
	if p.PlayerID != "" {
		return p.PlayerID
	}
	return p.ID
}

func (p rawPlayerEvent) name() string {
	for _, s := range []string{p.DisplayName, p.Name, p.PlayerName} {
		if s != "" {
			return s
		}
	}
	return ""
}

// mergeJoin upserts a player by id so duplicate join events are idempotent.
func mergeJoin(next *trivia.SessionView, data json.RawMessage) bool {
	var ev rawPlayerEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.playerID() == "" {
		log.Warn().Str("session_code", next.SessionCode).Msg("dropping player_joined without player id")
		return false
	}

	if i := next.FindPlayer(ev.playerID()); i >= 0 {
		if name := ev.name(); name != "" && name != next.Players[i].DisplayName {
			next.Players[i].DisplayName = name
			return true
		}
		return false
	}

	next.Players = append(next.Players, trivia.Player{
		ID:          ev.playerID(),
		DisplayName: ev.name(),
	})
	return true
}

// mergeLeave removes a player on an explicit departure event.
func mergeLeave(next *trivia.SessionView, data json.RawMessage) bool {
	var ev rawPlayerEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.playerID() == "" {
		return false
	}
	i := next.FindPlayer(ev.playerID())
	if i < 0 {
		return false
	}
	next.Players = append(next.Players[:i], next.Players[i+1:]...)
	return true
}

// mergeAnswered marks a player as having answered the current question.
// Events referencing a different question are stale and ignored.
func mergeAnswered(next *trivia.SessionView, data json.RawMessage) bool {
	var ev rawPlayerEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.playerID() == "" {
		return false
	}
	if ev.QuestionID != "" {
		if next.CurrentQuestion == nil || next.CurrentQuestion.ID != ev.QuestionID {
			return false
		}
	}
	i := next.FindPlayer(ev.playerID())
	if i < 0 || next.Players[i].HasAnswered {
		return false
	}
	next.Players[i].HasAnswered = true
	return true
}

// setPhase applies a lifecycle transition, refusing regressions: a session
// never returns to waiting, and ended is terminal.
func setPhase(next *trivia.SessionView, target trivia.Phase) bool {
	if next.Phase == target || next.Phase.Terminal() {
		return false
	}
	switch target {
	case trivia.PhaseEnded:
	case trivia.PhaseActive:
		if next.Phase != trivia.PhaseWaiting && next.Phase != trivia.PhasePaused {
			return false
		}
	case trivia.PhasePaused:
		if next.Phase != trivia.PhaseActive {
			return false
		}
	default:
		return false
	}
	next.Phase = target
	return true
}

// mergeDocument folds a full session document (pull snapshot or pushed
// initial_state) into the view. authoritative marks the pull channel, the
// only source trusted for the lag-detection player count.
func (r *Reconciler) mergeDocument(next *trivia.SessionView, doc snapshot.Document, authoritative bool) bool {
	changed := false

	if phase, ok := documentPhase(doc); ok && setPhase(next, phase) {
		changed = true
	}

	if authoritative {
		count := doc.PlayerCount
		if count == nil && doc.Players != nil {
			n := len(doc.Players)
			count = &n
		}
		if count != nil && *count != next.AuthoritativePlayerCount {
			next.AuthoritativePlayerCount = *count
			changed = true
		}
	}

	if doc.Players != nil {
		if replaceRoster(next, doc.Players, r.opts) {
			changed = true
		}
	}

	if payload := doc.QuestionPayload(); len(payload) > 0 {
		if mergeQuestionPayload(next, payload) {
			changed = true
		}
	}

	return changed
}

// replaceRoster applies a full roster from a session document: merge by
// player id, keep sticky names and push-derived answered flags, drop
// players absent from the replacement. An empty roster while the session
// is active is suspected stale data and ignored unless configured
// otherwise.
func replaceRoster(next *trivia.SessionView, incoming []snapshot.Player, opts Options) bool {
	if len(incoming) == 0 {
		if !opts.TrustEmptyRoster {
			if next.Phase == trivia.PhaseActive && len(next.Players) > 0 {
				log.Warn().
					Str("session_code", next.SessionCode).
					Int("known_players", len(next.Players)).
					Msg("ignoring empty roster for active session, likely transient")
			}
			return false
		}
		if len(next.Players) == 0 {
			return false
		}
		next.Players = []trivia.Player{}
		return true
	}

	merged := make([]trivia.Player, 0, len(incoming))
	changed := false
	seen := make(map[string]struct{}, len(incoming))

	for _, in := range incoming {
		id := in.PlayerID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		player := trivia.Player{ID: id, DisplayName: in.PlayerName()}
		if i := next.FindPlayer(id); i >= 0 {
			prev := next.Players[i]
			if player.DisplayName == "" {
				player.DisplayName = prev.DisplayName
			}
			player.HasAnswered = prev.HasAnswered
			player.Score = prev.Score
			if player.DisplayName != prev.DisplayName {
				changed = true
			}
		} else {
			changed = true
		}
		if in.Score != nil && *in.Score != player.Score {
			player.Score = *in.Score
			changed = true
		}
		if in.HasAnswered != nil && *in.HasAnswered != player.HasAnswered {
			player.HasAnswered = *in.HasAnswered
			changed = true
		}
		merged = append(merged, player)
	}

	if len(merged) == 0 {
		// Every entry lacked a usable id; nothing trustworthy to apply.
		return false
	}
	if len(merged) != len(next.Players) {
		changed = true
	}
	if !changed {
		return false
	}
	next.Players = merged
	return true
}

// documentPhase maps the many status spellings producers use onto the
// internal phase, falling back to the started/ended flags.
func documentPhase(doc snapshot.Document) (trivia.Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(doc.Status)) {
	case "waiting", "lobby", "pending":
		return trivia.PhaseWaiting, true
	case "active", "in_progress", "started", "running":
		return trivia.PhaseActive, true
	case "paused":
		return trivia.PhasePaused, true
	case "ended", "completed", "complete", "finished":
		return trivia.PhaseEnded, true
	}
	if doc.Ended {
		return trivia.PhaseEnded, true
	}
	if doc.Started {
		return trivia.PhaseActive, true
	}
	return "", false
}
