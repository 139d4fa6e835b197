package game

import "testing"

func TestAddScoreFloorsAtZero(t *testing.T) {
	p := &Player{Score: 100}

	AddScore(p, ScoreTimeout)
	if p.Score != 0 {
		t.Fatalf("expected floor at 0, got %d", p.Score)
	}

	AddScore(p, ScoreWrong)
	if p.Score != 0 {
		t.Fatalf("penalties must not dig below 0, got %d", p.Score)
	}

	AddScore(p, ScoreCorrect)
	if p.Score != 200 {
		t.Fatalf("expected 200, got %d", p.Score)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, c := range cases {
		if got := Clamp01(c.in); got != c.want {
			t.Errorf("Clamp01(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSanitizeOptionsIgnoresInvalidRating(t *testing.T) {
	r := NewRoom("AAAA", "host", 0)

	bogus := "explicit"
	next := SanitizeOptions(r, OptionsUpdate{ContentRating: &bogus})
	if next.ContentRating != RatingStandard {
		t.Fatalf("invalid rating applied: %s", next.ContentRating)
	}

	family := "family"
	next = SanitizeOptions(r, OptionsUpdate{ContentRating: &family})
	if next.ContentRating != RatingFamily {
		t.Fatalf("valid rating dropped: %s", next.ContentRating)
	}
}

func TestSanitizeOptionsClampsMiddleCount(t *testing.T) {
	r := NewRoom("AAAA", "host", 0)

	// No middle games exist yet, so any requested count collapses to 0.
	for _, req := range []int{-2, 0, 1, 5} {
		n := req
		next := SanitizeOptions(r, OptionsUpdate{MiddleCount: &n})
		if next.MiddleCount != 0 {
			t.Fatalf("middleCount %d should clamp to 0, got %d", req, next.MiddleCount)
		}
	}
}

func TestPickAvatarPrefersUnused(t *testing.T) {
	r := NewRoom("AAAA", "host", 20)
	taken := make(map[string]bool)

	for i := 0; i < len(Avatars); i++ {
		a := PickAvatar(r)
		if taken[a] {
			t.Fatalf("avatar %q handed out twice while unused ones remained", a)
		}
		taken[a] = true
		r.Players[string(rune('a'+i))] = &Player{AvatarID: a}
	}

	// Pool exhausted: duplicates are allowed rather than failing the join.
	if a := PickAvatar(r); a == "" {
		t.Fatal("expected a fallback avatar once the pool is exhausted")
	}
}

func TestNewRoomDefaults(t *testing.T) {
	r := NewRoom("QZXW", "host-1", 0)
	if r.MaxPlayers != DefaultMaxPlayers {
		t.Fatalf("expected default max players, got %d", r.MaxPlayers)
	}
	if r.GameStatus != StatusLobby || r.Phase != PhaseLobby || r.RoundID != RoundLobby {
		t.Fatalf("fresh room not in lobby state: %s %s %d", r.GameStatus, r.Phase, r.RoundID)
	}
	if r.Options.ContentRating != RatingStandard {
		t.Fatalf("unexpected default rating %s", r.Options.ContentRating)
	}
}

func TestLowestAliveHeight(t *testing.T) {
	f := &FinalState{
		AlivePlayerIDs: []string{"a", "b"},
		Heights:        map[string]float64{"a": 0.8, "b": 0.3, "dead": 0.1},
	}
	if got := f.LowestAliveHeight(); got != 0.3 {
		t.Fatalf("expected 0.3, got %v", got)
	}

	empty := &FinalState{Heights: map[string]float64{}}
	if got := empty.LowestAliveHeight(); got != 0 {
		t.Fatalf("expected 0 for empty field, got %v", got)
	}
}
