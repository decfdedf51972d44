package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkbrennan/partyquiz/internal/gate"
	"github.com/mkbrennan/partyquiz/internal/trivia"
)

type stubSource struct {
	view         trivia.SessionView
	connectivity trivia.ConnectivityState
	decision     gate.Decision
}

func (s *stubSource) Snapshot() trivia.SessionView           { return s.view }
func (s *stubSource) Connectivity() trivia.ConnectivityState { return s.connectivity }
func (s *stubSource) CanStart() gate.Decision                { return s.decision }

func TestStateEndpoint(t *testing.T) {
	view := trivia.NewSessionView("ABCD")
	view.Players = append(view.Players, trivia.Player{ID: "p1", DisplayName: "Ada"})
	view.Version = 3

	srv := httptest.NewServer(NewHandler(&stubSource{view: view}).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/session/state")
	if err != nil {
		t.Fatalf("GET state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got trivia.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionCode != "ABCD" || got.Version != 3 || len(got.Players) != 1 {
		t.Fatalf("unexpected view: %+v", got)
	}
}

func TestConnectivityEndpoint(t *testing.T) {
	source := &stubSource{
		connectivity: trivia.ConnectivityReconnecting,
		decision:     gate.Decision{Reason: "no players have joined yet"},
	}
	srv := httptest.NewServer(NewHandler(source).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/session/connectivity")
	if err != nil {
		t.Fatalf("GET connectivity: %v", err)
	}
	defer resp.Body.Close()

	var got struct {
		Connectivity string `json:"connectivity"`
		CanStart     bool   `json:"can_start"`
		Reason       string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Connectivity != "reconnecting" || got.CanStart || got.Reason == "" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestStateEndpointRejectsPost(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubSource{}).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/session/state", "application/json", nil)
	if err != nil {
		t.Fatalf("POST state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
