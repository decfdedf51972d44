package trivia

import "testing"

func TestCloneIsDeep(t *testing.T) {
	idx := 1
	view := NewSessionView("ABCD")
	view.Players = []Player{{ID: "p1", DisplayName: "Ada"}}
	view.CurrentQuestion = &Question{
		ID:                 "q1",
		DisplayOptions:     []string{"A", "B"},
		CorrectAnswerIndex: &idx,
	}
	view.Stats = []byte(`{"messages":1}`)

	clone := view.Clone()
	clone.Players[0].DisplayName = "Eve"
	clone.CurrentQuestion.DisplayOptions[0] = "Z"
	*clone.CurrentQuestion.CorrectAnswerIndex = 0
	clone.Stats[0] = 'x'

	if view.Players[0].DisplayName != "Ada" {
		t.Fatal("clone shares the players slice")
	}
	if view.CurrentQuestion.DisplayOptions[0] != "A" {
		t.Fatal("clone shares the options slice")
	}
	if *view.CurrentQuestion.CorrectAnswerIndex != 1 {
		t.Fatal("clone shares the answer index pointer")
	}
	if view.Stats[0] != '{' {
		t.Fatal("clone shares the stats blob")
	}
}

func TestFindPlayer(t *testing.T) {
	view := NewSessionView("ABCD")
	view.Players = []Player{{ID: "p1"}, {ID: "p2"}}
	if i := view.FindPlayer("p2"); i != 1 {
		t.Fatalf("FindPlayer(p2) = %d", i)
	}
	if i := view.FindPlayer("p9"); i != -1 {
		t.Fatalf("FindPlayer(p9) = %d", i)
	}
}

func TestPhaseTerminal(t *testing.T) {
	for _, phase := range []Phase{PhaseWaiting, PhaseActive, PhasePaused} {
		if phase.Terminal() {
			t.Errorf("%q reported terminal", phase)
		}
	}
	if !PhaseEnded.Terminal() {
		t.Error("ended not terminal")
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	cases := []struct {
		in   string
		want Difficulty
	}{
		{"easy", DifficultyEasy},
		{"MEDIUM", DifficultyMedium},
		{"Hard", DifficultyHard},
		{" hard ", DifficultyHard},
		{"", ""},
		{"tricky", ""},
		{"日difficult", ""},
	}
	for _, tc := range cases {
		if got := NormalizeDifficulty(tc.in); got != tc.want {
			t.Errorf("NormalizeDifficulty(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
