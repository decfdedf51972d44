package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchDecodesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/ABCD/state" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"session_code": "ABCD",
			"status": "active",
			"player_count": 2,
			"players": [
				{"player_id": "p1", "display_name": "Ada", "score": 10},
				{"id": "p2", "name": "Bob"}
			],
			"current_question": {"id": "q1", "prompt": "go?"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	doc, err := client.Fetch(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if doc.Status != "active" {
		t.Fatalf("status = %q", doc.Status)
	}
	if doc.PlayerCount == nil || *doc.PlayerCount != 2 {
		t.Fatalf("player_count = %v", doc.PlayerCount)
	}
	if len(doc.Players) != 2 {
		t.Fatalf("players = %+v", doc.Players)
	}
	if doc.Players[0].PlayerID() != "p1" || doc.Players[0].PlayerName() != "Ada" {
		t.Fatalf("player accessors: %+v", doc.Players[0])
	}
	if doc.Players[1].PlayerID() != "p2" || doc.Players[1].PlayerName() != "Bob" {
		t.Fatalf("alternate field names not recognized: %+v", doc.Players[1])
	}
	if len(doc.QuestionPayload()) == 0 {
		t.Fatal("question payload missing")
	}
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	if _, err := client.Fetch(context.Background(), "ABCD"); err == nil {
		t.Fatal("Fetch succeeded on a 503")
	}
}

func TestFetchRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	if _, err := client.Fetch(context.Background(), "ABCD"); err == nil {
		t.Fatal("Fetch succeeded on malformed JSON")
	}
}

func TestQuestionPayloadPrefersCurrentQuestion(t *testing.T) {
	doc := Document{
		CurrentQuestion: []byte(`{"id":"q1"}`),
		Question:        []byte(`{"id":"q2"}`),
	}
	if got := string(doc.QuestionPayload()); got != `{"id":"q1"}` {
		t.Fatalf("payload = %s", got)
	}

	doc = Document{Question: []byte(`{"id":"q2"}`)}
	if got := string(doc.QuestionPayload()); got != `{"id":"q2"}` {
		t.Fatalf("fallback payload = %s", got)
	}
}
