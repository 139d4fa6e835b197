package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcaldwell/podiumquiz/go/internal/content"
	"github.com/mcaldwell/podiumquiz/go/internal/engine"
	"github.com/mcaldwell/podiumquiz/go/internal/rooms"
)

func writeContentFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var cats []content.Category
	for _, id := range content.Round1CategoryIDs {
		cats = append(cats, content.Category{ID: id, Name: "Category " + id})
	}
	catDoc, _ := json.Marshal(map[string]any{"categories": cats})
	if err := os.WriteFile(filepath.Join(dir, "categories.v1.json"), catDoc, 0o644); err != nil {
		t.Fatal(err)
	}

	allIDs := append([]string{}, content.Round1CategoryIDs...)
	allIDs = append(allIDs, content.FinalCategoryID)
	for _, catID := range allIDs {
		var qs []map[string]any
		for i := 0; i < 10; i++ {
			qs = append(qs, map[string]any{
				"id":         fmt.Sprintf("%s-%d", catID, i),
				"categoryId": catID,
				"prompt":     "prompt?",
				"answers":    []string{"w", "x", "y", "z"},
				"correct":    "B",
			})
		}
		doc, _ := json.Marshal(qs)
		if err := os.WriteFile(filepath.Join(dir, "questions."+catID+".json"), doc, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestServer(t *testing.T) (*httptest.Server, *ConnectionManager) {
	t.Helper()

	store, err := content.Load(writeContentFixture(t))
	if err != nil {
		t.Fatalf("load content: %v", err)
	}

	clock := clockwork.NewRealClock()
	cm := NewConnectionManager(DefaultConnectionConfig(), clock, nil)
	eng := engine.New(rooms.NewInMemory(), store, cm, clock)
	h := NewHandler(eng, cm)

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, cm
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, seq int64, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	frame, _ := json.Marshal(ClientMessage{Seq: seq, Type: msgType, Data: raw})
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// readAck skips server events until the ack for seq arrives.
func readAck(t *testing.T, ws *websocket.Conn, seq int64) ClientAck {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read failed waiting for ack %d: %v", seq, err)
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(frame, &probe); err != nil {
			t.Fatalf("unparseable frame: %s", frame)
		}
		if _, isEvent := probe["event"]; isEvent {
			continue
		}
		var ack ClientAck
		if err := json.Unmarshal(frame, &ack); err != nil {
			t.Fatalf("bad ack frame: %s", frame)
		}
		if ack.Seq == seq {
			return ack
		}
	}
}

// readEvent skips frames until the named event arrives, returning its
// envelope.
func readEvent(t *testing.T, ws *websocket.Conn, event string) ServerEvent {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read failed waiting for %s: %v", event, err)
		}
		var env ServerEvent
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}
		if string(env.Event) == event {
			return env
		}
	}
}

func TestCreateJoinOverWire(t *testing.T) {
	srv, cm := newTestServer(t)

	host := dial(t, srv)
	send(t, host, 1, MsgCreateRoom, map[string]any{"maxPlayers": 4})
	ack := readAck(t, host, 1)
	if !ack.OK {
		t.Fatalf("create rejected: %s", ack.Reason)
	}
	code, _ := ack.Data["roomCode"].(string)
	if len(code) != 4 {
		t.Fatalf("bad room code %q", code)
	}

	env := readEvent(t, host, "room_created")
	if env.ID == "" || env.Timestamp.IsZero() {
		t.Fatal("envelope missing id or timestamp")
	}

	phone := dial(t, srv)
	send(t, phone, 7, MsgJoinRoom, map[string]any{"roomCode": code, "displayName": "ann"})
	joinAck := readAck(t, phone, 7)
	if !joinAck.OK {
		t.Fatalf("join rejected: %s", joinAck.Reason)
	}
	if tok, _ := joinAck.Data["playerToken"].(string); tok == "" {
		t.Fatal("join ack missing player token")
	}

	// The host's group subscription must carry the roster update.
	env = readEvent(t, host, "player_list_updated")
	var roster struct {
		Players []struct {
			DisplayName string `json:"displayName"`
		} `json:"players"`
	}
	if err := json.Unmarshal(env.Data, &roster); err != nil {
		t.Fatalf("bad roster payload: %v", err)
	}
	if len(roster.Players) != 1 || roster.Players[0].DisplayName != "ann" {
		t.Fatalf("unexpected roster %+v", roster.Players)
	}

	if got := cm.RoomGroupSize(code); got != 2 {
		t.Fatalf("expected host and phone in the room group, got %d", got)
	}

	// A closed socket leaves the group and the room closes behind the host.
	phone.Close()
	deadline := time.Now().Add(3 * time.Second)
	for cm.RoomGroupSize(code) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("phone never left the group, size %d", cm.RoomGroupSize(code))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJoinUnknownRoomOverWire(t *testing.T) {
	srv, _ := newTestServer(t)

	phone := dial(t, srv)
	send(t, phone, 1, MsgJoinRoom, map[string]any{"roomCode": "IIII", "displayName": "ann"})
	ack := readAck(t, phone, 1)
	if ack.OK || ack.Reason != engine.ReasonRoomNotFound {
		t.Fatalf("expected ROOM_NOT_FOUND, got %+v", ack)
	}
}

func TestUnknownMessageTypeAcked(t *testing.T) {
	srv, _ := newTestServer(t)

	ws := dial(t, srv)
	send(t, ws, 9, "host:reticulate_splines", map[string]any{})
	ack := readAck(t, ws, 9)
	if ack.OK || ack.Reason != "UNKNOWN_MESSAGE_TYPE" {
		t.Fatalf("expected UNKNOWN_MESSAGE_TYPE, got %+v", ack)
	}
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	srv, _ := newTestServer(t)

	ws := dial(t, srv)
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	// The connection must survive: a well-formed message still gets acked.
	send(t, ws, 2, MsgCreateRoom, map[string]any{})
	ack := readAck(t, ws, 2)
	if !ack.OK {
		t.Fatalf("connection unusable after malformed frame: %+v", ack)
	}
}
