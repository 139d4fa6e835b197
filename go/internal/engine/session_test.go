package engine

import (
	"testing"
	"time"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

func playerToken(t *testing.T, room *game.Room, connID string) string {
	t.Helper()
	p := room.Players[connID]
	if p == nil {
		t.Fatalf("no player at %s", connID)
	}
	return p.Token
}

func TestRejoinPreservesIdentity(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann")
	room := f.room(t, code)
	token := playerToken(t, room, "conn-ann")

	room.Players["conn-ann"].Score = 600
	avatar := room.Players["conn-ann"].AvatarID

	f.engine.Disconnect("conn-ann")
	if room.Players["conn-ann"].IsConnected {
		t.Fatal("player should be marked disconnected")
	}

	ack := f.engine.RejoinRoom("conn-ann-2", code, token)
	if !ack.OK {
		t.Fatalf("rejoin rejected: %s", ack.Reason)
	}
	if ack.Data["playerId"].(string) != "conn-ann-2" {
		t.Fatal("rejoin ack should carry the new connection id")
	}

	if room.Players["conn-ann"] != nil {
		t.Fatal("old connection id still mapped")
	}
	p := room.Players["conn-ann-2"]
	if p == nil {
		t.Fatal("player not reachable at new connection id")
	}
	if p.Score != 600 || p.AvatarID != avatar || !p.IsConnected {
		t.Fatalf("identity lost on rejoin: %+v", p)
	}
	if room.PlayerTokens[token] != "conn-ann-2" {
		t.Fatal("token should point at the new connection id")
	}
}

func TestRejoinRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann")

	if ack := f.engine.RejoinRoom("c", code, ""); ack.Reason != ReasonTokenInvalid {
		t.Fatalf("expected TOKEN_INVALID for empty token, got %+v", ack)
	}
	if ack := f.engine.RejoinRoom("c", code, "not-a-token"); ack.Reason != ReasonTokenInvalid {
		t.Fatalf("expected TOKEN_INVALID, got %+v", ack)
	}
	if ack := f.engine.RejoinRoom("c", "IIII", "whatever"); ack.Reason != ReasonRoomNotFound {
		t.Fatalf("expected ROOM_NOT_FOUND, got %+v", ack)
	}
}

func TestPruneRemovesPlayerAfterGraceWindow(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann", "ben")
	room := f.room(t, code)
	token := playerToken(t, room, "conn-ann")

	f.engine.Disconnect("conn-ann")

	room.Mu.Lock()
	room.Players["conn-ann"].LastSeen = f.clock.Now().Add(-61 * time.Second)
	room.Mu.Unlock()

	f.engine.runTask(task{Code: code, Kind: taskPrune, Token: token})

	if room.Players["conn-ann"] != nil {
		t.Fatal("player should be pruned after the grace window")
	}
	if _, ok := room.PlayerTokens[token]; ok {
		t.Fatal("pruned player's token should be forgotten")
	}
	if room.Players["conn-ben"] == nil {
		t.Fatal("connected player must not be touched")
	}
}

func TestPruneSparesRecentDisconnects(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann")
	room := f.room(t, code)
	token := playerToken(t, room, "conn-ann")

	f.engine.Disconnect("conn-ann")

	// A timer that fires just early finds the player still inside the
	// grace window and leaves them alone.
	room.Mu.Lock()
	room.Players["conn-ann"].LastSeen = f.clock.Now().Add(-59 * time.Second)
	room.Mu.Unlock()

	f.engine.runTask(task{Code: code, Kind: taskPrune, Token: token})

	if room.Players["conn-ann"] == nil {
		t.Fatal("player inside the grace window must survive")
	}
}

func TestPruneSparesReconnectedPlayer(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann")
	room := f.room(t, code)
	token := playerToken(t, room, "conn-ann")

	f.engine.Disconnect("conn-ann")
	if ack := f.engine.RejoinRoom("conn-ann-2", code, token); !ack.OK {
		t.Fatalf("rejoin rejected: %s", ack.Reason)
	}

	room.Mu.Lock()
	room.Players["conn-ann-2"].LastSeen = f.clock.Now().Add(-61 * time.Second)
	room.Mu.Unlock()

	// Even a stale prune must not evict a reconnected player.
	f.engine.runTask(task{Code: code, Kind: taskPrune, Token: token})

	if room.Players["conn-ann-2"] == nil {
		t.Fatal("reconnected player must survive a stale prune")
	}
}

func TestRejoinRemapsFinalRoundIdentity(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann", "ben")
	room := f.startFinal(t, code, map[string]int{"conn-ann": 0, "conn-ben": 0})
	token := playerToken(t, room, "conn-ann")
	height := room.Final.Heights["conn-ann"]

	f.engine.Disconnect("conn-ann")
	if ack := f.engine.RejoinRoom("conn-ann-2", code, token); !ack.OK {
		t.Fatalf("rejoin rejected: %s", ack.Reason)
	}

	if !room.Final.IsAlive("conn-ann-2") {
		t.Fatal("rejoined player should hold their alive slot")
	}
	if room.Final.IsAlive("conn-ann") {
		t.Fatal("old connection id still in the alive set")
	}
	if got := room.Final.Heights["conn-ann-2"]; !floatEq(got, height) {
		t.Fatalf("podium height lost: want %.4f, got %.4f", height, got)
	}

	// And they can still answer the open question under the new id.
	if ack := f.engine.SubmitFinalAnswer("conn-ann-2", code, "", "B"); !ack.OK {
		t.Fatalf("rejoined player cannot answer: %s", ack.Reason)
	}
}

func TestRejoinMidQuestionReceivesLiveSnapshot(t *testing.T) {
	f := newFixture(t)
	code := f.newLobby(t, "ann", "ben")
	f.startRound1(t, code)
	room := f.room(t, code)
	token := playerToken(t, room, "conn-ann")
	q := room.R1.CurrentQuestion

	f.engine.Disconnect("conn-ann")
	if ack := f.engine.RejoinRoom("conn-ann-2", code, token); !ack.OK {
		t.Fatalf("rejoin rejected: %s", ack.Reason)
	}

	var sawQuestion, sawFastest bool
	f.bc.mu.Lock()
	for _, ev := range f.bc.events {
		if ev.ConnID != "conn-ann-2" {
			continue
		}
		switch ev.Event {
		case game.EventR1QuestionPresented:
			if ev.Payload.(game.QuestionPresentedPayload).QuestionID == q.ID {
				sawQuestion = true
			}
		case game.EventR1FastestState:
			sawFastest = true
		}
	}
	f.bc.mu.Unlock()

	if !sawQuestion {
		t.Fatal("rejoin snapshot missing the open question")
	}
	if !sawFastest {
		t.Fatal("rejoin snapshot missing the race state")
	}
}
