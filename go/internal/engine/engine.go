// Package engine drives the trivia game state machines. All mutable room
// state is touched only while holding that room's lock, and every timer
// callback re-fetches the room from the registry before acting, so handlers
// for one room never interleave.
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/content"
	"github.com/mcaldwell/podiumquiz/go/internal/game"
	"github.com/mcaldwell/podiumquiz/go/internal/rooms"
)

// Broadcaster is the outbound half of the transport. The gateway implements
// it over websockets; tests implement it with a recorder.
type Broadcaster interface {
	ToRoom(code string, event game.EventType, payload any)
	ToConn(connID string, event game.EventType, payload any)
	JoinRoomGroup(connID, code string)
}

// Ack is the structured outcome returned to the client that triggered a
// handler. Rejections carry a reason and leave room state unmodified.
type Ack struct {
	OK     bool           `json:"ok"`
	Reason string         `json:"reason,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Rejection reasons.
const (
	ReasonRoomNotFound       = "ROOM_NOT_FOUND"
	ReasonNotHost            = "NOT_HOST"
	ReasonOptionsLocked      = "OPTIONS_LOCKED"
	ReasonPlayerNotFound     = "PLAYER_NOT_FOUND"
	ReasonRoomFull           = "ROOM_FULL"
	ReasonNameRequired       = "NAME_REQUIRED"
	ReasonKicked             = "KICKED"
	ReasonTokenInvalid       = "TOKEN_INVALID"
	ReasonPlayerMissing      = "PLAYER_MISSING"
	ReasonGameAlreadyStarted = "GAME_ALREADY_STARTED"
	ReasonNotEnoughPlayers   = "NOT_ENOUGH_PLAYERS"
	ReasonQuestionNotOpen    = "QUESTION_NOT_OPEN"
	ReasonPlayerNotInRoom    = "PLAYER_NOT_IN_ROOM"
	ReasonInvalidChoice      = "INVALID_CHOICE"
	ReasonNoCurrentQuestion  = "NO_CURRENT_QUESTION"
	ReasonAlreadyHasWinner   = "ALREADY_HAS_WINNER"
	ReasonLockedOut          = "LOCKED_OUT"
	ReasonPickNotOpen        = "PICK_NOT_OPEN"
	ReasonNotChooser         = "NOT_CHOOSER"
	ReasonInvalidPick        = "INVALID_PICK"
	ReasonNotAlive           = "NOT_ALIVE"
	ReasonAlreadyAnswered    = "ALREADY_ANSWERED"
	ReasonCreateRoomFailed   = "CREATE_ROOM_FAILED"
)

func reject(reason string) Ack { return Ack{OK: false, Reason: reason} }

func accept() Ack { return Ack{OK: true} }

// Timing constants.
const (
	Round1IntroDelay    = 2000 * time.Millisecond
	CategoryPickTimeout = 12 * time.Second
	CategoryPickOptions = 4
	PostQuestionPause   = 900 * time.Millisecond

	FinalIntroPause  = 1500 * time.Millisecond
	FinalRevealPause = 1200 * time.Millisecond
	FallTickInterval = 50 * time.Millisecond

	FallRatePerSec  = 0.02
	MinSurviveSec   = 30.0
	MinStartHeight  = 0.35
	MaxStartHeight  = 0.85
	WrongDrop       = 0.12
	NoAnswerDrop    = 0.14
	BoostBase       = 0.10
	BoostElasticity = 0.18

	RejoinGrace       = 60 * time.Second
	RejoinGraceBuffer = 250 * time.Millisecond
)

// Engine owns every room's game flow.
type Engine struct {
	registry rooms.Registry
	content  *content.Store
	bc       Broadcaster
	clock    clockwork.Clock
	sched    *scheduler
}

// New wires an engine. Pass clockwork.NewRealClock() in production.
func New(registry rooms.Registry, store *content.Store, bc Broadcaster, clock clockwork.Clock) *Engine {
	e := &Engine{
		registry: registry,
		content:  store,
		bc:       bc,
		clock:    clock,
	}
	e.sched = newScheduler(e, clock)
	return e
}

// withRoom runs fn under the room's lock, or returns false if the room is
// gone. Every timer callback and handler goes through here so a room's
// handlers are strictly serialized.
func (e *Engine) withRoom(code string, fn func(*game.Room)) bool {
	room := e.registry.Get(code)
	if room == nil {
		return false
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.Closed {
		return false
	}
	fn(room)
	return true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeChoice(choice string) string {
	return strings.ToUpper(strings.TrimSpace(choice))
}

func validChoice(choice string) bool {
	switch choice {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// CreateRoom allocates a room owned by the calling connection.
func (e *Engine) CreateRoom(hostConnID string, maxPlayers int) Ack {
	room, err := e.registry.Create(hostConnID, maxPlayers)
	if err != nil {
		log.Error().Err(err).Msg("room creation failed")
		e.bc.ToConn(hostConnID, game.EventError, game.ErrorPayload{Code: game.ErrCodeCreateRoomFailed})
		return reject(ReasonCreateRoomFailed)
	}

	e.bc.JoinRoomGroup(hostConnID, room.Code)

	room.Mu.Lock()
	defer room.Mu.Unlock()

	e.bc.ToConn(hostConnID, game.EventRoomCreated, game.RoomCreatedPayload{
		RoomCode:   room.Code,
		MaxPlayers: room.MaxPlayers,
	})
	e.broadcastState(room)
	e.broadcastPlayerList(room)
	e.broadcastOptions(room)

	return Ack{OK: true, Data: map[string]any{
		"roomCode":   room.Code,
		"maxPlayers": room.MaxPlayers,
	}}
}

// UpdateOptions applies host option edits. Lobby only.
func (e *Engine) UpdateOptions(connID, code string, update game.OptionsUpdate) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if room.HostConnID != connID {
			ack = reject(ReasonNotHost)
			return
		}
		if room.GameStatus != game.StatusLobby {
			ack = reject(ReasonOptionsLocked)
			return
		}

		room.Options = game.SanitizeOptions(room, update)
		e.broadcastOptions(room)
		e.broadcastState(room)
		ack = accept()
	})
	return ack
}

// KickPlayer removes a player and permanently bars their token. Lobby only.
func (e *Engine) KickPlayer(connID, code, playerID string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if room.HostConnID != connID {
			ack = reject(ReasonNotHost)
			return
		}
		if room.GameStatus != game.StatusLobby {
			ack = reject(ReasonOptionsLocked)
			return
		}

		pid := strings.TrimSpace(playerID)
		p := room.Players[pid]
		if p == nil {
			ack = reject(ReasonPlayerNotFound)
			return
		}

		if p.Token != "" {
			room.KickedTokens[p.Token] = true
			delete(room.PlayerTokens, p.Token)
			e.sched.cancel(timerKey{Code: room.Code, Kind: taskPrune, Sub: p.Token})
		}

		e.bc.ToConn(pid, game.EventPlayerKicked, game.KickedPayload{
			RoomCode: room.Code,
			Reason:   "KICKED_BY_HOST",
		})

		delete(room.Players, pid)
		log.Info().Str("room", room.Code).Str("player", p.DisplayName).Msg("player kicked")

		e.broadcastPlayerList(room)
		e.broadcastState(room)
		ack = accept()
	})
	return ack
}

// StartGame begins Round 1. Host only, lobby only, needs at least one player.
func (e *Engine) StartGame(connID, code string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if room.GameStatus != game.StatusLobby {
			ack = reject(ReasonGameAlreadyStarted)
			return
		}
		if room.HostConnID != connID {
			ack = reject(ReasonNotHost)
			return
		}
		if len(room.Players) < 1 {
			ack = reject(ReasonNotEnoughPlayers)
			return
		}

		room.GameStatus = game.StatusInProgress
		e.broadcastOptions(room)

		// Fresh run state; also clears anything a previous run left armed.
		e.sched.cancelGameTimers(room.Code)
		room.UsedQuestionIDs = make(map[string]bool)
		room.Phase = game.PhaseRound1Intro
		room.RoundID = game.Round1
		room.R1 = game.NewRound1State()
		room.Final = nil

		e.broadcastState(room)
		e.broadcastFastestState(room)

		e.sched.schedule(task{
			Code:        room.Code,
			Kind:        taskRound1Intro,
			ExpectPhase: game.PhaseRound1Intro,
		}, Round1IntroDelay)

		log.Info().Str("room", room.Code).Int("players", len(room.Players)).Msg("game started")
		ack = accept()
	})
	return ack
}

// EndGame tears the room down on the host's request.
func (e *Engine) EndGame(connID, code string) Ack {
	room := e.registry.Get(normalizeCode(code))
	if room == nil {
		return reject(ReasonRoomNotFound)
	}
	room.Mu.Lock()
	if room.Closed {
		room.Mu.Unlock()
		return reject(ReasonRoomNotFound)
	}
	if room.HostConnID != connID {
		room.Mu.Unlock()
		return reject(ReasonNotHost)
	}
	room.Mu.Unlock()

	e.destroyRoom(room.Code)
	return accept()
}

// destroyRoom broadcasts the closure, cancels every timer the room owns, and
// removes it from the registry. Timer cancellation precedes deletion so no
// fired callback can observe a half-dead room; the Closed flag covers
// callbacks that already hold a room pointer.
func (e *Engine) destroyRoom(code string) {
	room := e.registry.Get(code)
	if room == nil {
		return
	}

	room.Mu.Lock()
	if room.Closed {
		room.Mu.Unlock()
		return
	}
	room.Closed = true
	e.bc.ToRoom(code, game.EventError, game.ErrorPayload{RoomCode: code, Code: game.ErrCodeRoomClosed})
	room.Mu.Unlock()

	e.sched.cancelAll(code)
	e.registry.Delete(code)
	log.Info().Str("room", code).Msg("room destroyed")
}

// Disconnect handles a dropped connection: a host drop closes the room, a
// player drop starts the rejoin grace window.
func (e *Engine) Disconnect(connID string) {
	for _, code := range e.registry.Codes() {
		var closeRoom bool
		e.withRoom(code, func(room *game.Room) {
			if room.HostConnID == connID {
				closeRoom = true
				return
			}
			p := room.Players[connID]
			if p == nil {
				return
			}

			p.IsConnected = false
			p.LastSeen = e.clock.Now()
			if p.Token != "" {
				e.schedulePrune(room, p.Token)
			}
			e.broadcastPlayerList(room)
			log.Info().Str("room", code).Str("player", p.DisplayName).Msg("player disconnected, grace window open")
		})
		if closeRoom {
			log.Info().Str("room", code).Msg("host disconnected, closing room")
			e.destroyRoom(code)
		}
	}
}

func newPlayerToken() string {
	return uuid.NewString()
}

// enterErrorState parks the room in ERROR and announces why. No further
// questions are served; the host can only end the game.
func (e *Engine) enterErrorState(room *game.Room, errCode string) {
	room.Phase = game.PhaseError
	e.broadcastState(room)
	e.bc.ToRoom(room.Code, game.EventError, game.ErrorPayload{RoomCode: room.Code, Code: errCode})
	log.Error().Str("room", room.Code).Str("code", errCode).Msg("room entered error state")
}
