package engine

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// JoinRoom admits a first-time player and issues their durable reconnect
// token in the ack data.
func (e *Engine) JoinRoom(connID, code, displayName string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if len(room.Players) >= room.MaxPlayers {
			ack = reject(ReasonRoomFull)
			return
		}
		name := strings.TrimSpace(displayName)
		if name == "" {
			ack = reject(ReasonNameRequired)
			return
		}

		token := newPlayerToken()
		p := &game.Player{
			PlayerID:    connID,
			DisplayName: name,
			Score:       0,
			AvatarID:    game.PickAvatar(room),
			Token:       token,
			IsConnected: true,
			LastSeen:    e.clock.Now(),
		}
		room.Players[connID] = p
		room.PlayerTokens[token] = connID

		e.bc.JoinRoomGroup(connID, room.Code)

		ack = Ack{OK: true, Data: map[string]any{
			"roomCode":    room.Code,
			"playerId":    connID,
			"playerToken": token,
			"displayName": name,
			"avatarId":    p.AvatarID,
			"state":       room.Phase,
			"roundId":     room.RoundID,
		}}

		e.sendOptionsSnapshot(room, connID)
		e.broadcastPlayerList(room)
		e.broadcastState(room)

		log.Info().Str("room", room.Code).Str("player", name).Str("conn", connID).Msg("player joined")
	})
	return ack
}

// RejoinRoom restores a player's identity from their token: the existing
// record is moved to the new connection id, preserving score, avatar and
// history, and a phase-appropriate snapshot is pushed so the client lands
// mid-game in the right place.
func (e *Engine) RejoinRoom(connID, code, token string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		tok := strings.TrimSpace(token)
		if room.KickedTokens[tok] {
			ack = reject(ReasonKicked)
			return
		}

		oldConnID, ok := room.PlayerTokens[tok]
		if tok == "" || !ok {
			ack = reject(ReasonTokenInvalid)
			return
		}

		existing := room.Players[oldConnID]
		if existing == nil {
			delete(room.PlayerTokens, tok)
			ack = reject(ReasonPlayerMissing)
			return
		}

		delete(room.Players, oldConnID)
		existing.PlayerID = connID
		existing.IsConnected = true
		existing.LastSeen = e.clock.Now()
		room.Players[connID] = existing
		room.PlayerTokens[tok] = connID

		e.sched.cancel(timerKey{Code: room.Code, Kind: taskPrune, Sub: tok})

		// Final round identity follows the player, not the connection:
		// move their alive-set slot and height to the new id.
		if room.Final != nil {
			for i, id := range room.Final.AlivePlayerIDs {
				if id == oldConnID {
					room.Final.AlivePlayerIDs[i] = connID
				}
			}
			if h, ok := room.Final.Heights[oldConnID]; ok {
				delete(room.Final.Heights, oldConnID)
				room.Final.Heights[connID] = h
			}
			if a, ok := room.Final.Answered[oldConnID]; ok {
				delete(room.Final.Answered, oldConnID)
				room.Final.Answered[connID] = a
			}
		}
		if room.R1 != nil {
			if room.R1.ChooserPlayerID == oldConnID {
				room.R1.ChooserPlayerID = connID
			}
			if f := room.R1.Fastest; f != nil {
				if f.WinnerPlayerID == oldConnID {
					f.WinnerPlayerID = connID
				}
				if f.LockedOut[oldConnID] {
					delete(f.LockedOut, oldConnID)
					f.LockedOut[connID] = true
				}
				if f.Answered[oldConnID] {
					delete(f.Answered, oldConnID)
					f.Answered[connID] = true
				}
			}
		}

		e.bc.JoinRoomGroup(connID, room.Code)

		ack = Ack{OK: true, Data: map[string]any{
			"roomCode":    room.Code,
			"playerId":    connID,
			"playerToken": tok,
			"displayName": existing.DisplayName,
			"avatarId":    existing.AvatarID,
			"state":       room.Phase,
			"roundId":     room.RoundID,
			"players":     room.PlayerList(),
		}}

		e.sendRejoinSnapshot(room, connID)
		e.sendOptionsSnapshot(room, connID)
		e.broadcastPlayerList(room)
		e.broadcastState(room)

		log.Info().Str("room", room.Code).Str("player", existing.DisplayName).Str("conn", connID).Msg("player rejoined")
	})
	return ack
}

func (e *Engine) sendOptionsSnapshot(room *game.Room, connID string) {
	e.bc.ToConn(connID, game.EventOptionsUpdated, game.OptionsPayload{
		RoomCode:             room.Code,
		GameStatus:           room.GameStatus,
		Options:              room.Options,
		AvailableMiddleGames: game.AvailableMiddleGames(room),
	})
}

// sendRejoinSnapshot pushes enough state for a reconnecting client to
// resume wherever the room currently is: the live question and deadline
// mid-question, the live options and deadline mid-pick.
func (e *Engine) sendRejoinSnapshot(room *game.Room, connID string) {
	e.bc.ToConn(connID, game.EventStateChanged, e.buildStateSnapshot(room))

	if room.RoundID == game.Round1 {
		if q := room.R1.CurrentQuestion; q != nil {
			e.bc.ToConn(connID, game.EventR1QuestionPresented, game.QuestionPresentedPayload{
				RoomCode:   room.Code,
				QuestionID: q.ID,
				Prompt:     q.Prompt,
				Answers:    q.Answers,
				EndsAt:     toMillis(room.R1.QuestionEndsAt),
			})
		}
		if room.Phase == game.PhaseRound1Question {
			e.bc.ToConn(connID, game.EventR1FastestState, e.buildFastestState(room))
		}
		if room.Phase == game.PhaseRound1Pick {
			pickPayload := game.CategoryPickPayload{
				RoomCode:        room.Code,
				ChooserPlayerID: room.R1.ChooserPlayerID,
				TimeoutMs:       CategoryPickTimeout.Milliseconds(),
				EndsAt:          toMillis(room.R1.PickEndsAt),
			}
			if p := room.Players[room.R1.ChooserPlayerID]; p != nil {
				pickPayload.ChooserDisplayName = p.DisplayName
			}
			for _, id := range room.R1.PickOptions {
				pickPayload.Options = append(pickPayload.Options, game.CategoryOption{
					ID:   id,
					Name: e.content.CategoryName(id),
				})
			}
			e.bc.ToConn(connID, game.EventR1CategoryPick, pickPayload)
		}
	}

	if room.RoundID == game.RoundFinal && room.Final != nil {
		if q := room.Final.CurrentQuestion; q != nil && room.Phase == game.PhaseFinalQuestion {
			e.bc.ToConn(connID, game.EventFinalQuestionPresented, game.FinalQuestionPayload{
				RoomCode:       room.Code,
				QuestionID:     q.ID,
				Prompt:         q.Prompt,
				Answers:        q.Answers,
				EndsAt:         toMillis(room.Final.QuestionEndsAt),
				AlivePlayerIDs: append([]string{}, room.Final.AlivePlayerIDs...),
				Heights:        copyHeights(room.Final.Heights),
			})
		}
	}
}

// schedulePrune arms the grace-window timer for a disconnected player.
// Caller holds the room lock.
func (e *Engine) schedulePrune(room *game.Room, token string) {
	e.sched.schedule(task{
		Code:  room.Code,
		Kind:  taskPrune,
		Token: token,
	}, RejoinGrace+RejoinGraceBuffer)
}

// onPruneTimer deletes a player who stayed disconnected past the grace
// window. A reconnect just under the wire is tolerated: the player must
// still be disconnected AND stale when the timer fires. Caller holds the
// room lock.
func (e *Engine) onPruneTimer(room *game.Room, token string) {
	connID, ok := room.PlayerTokens[token]
	if !ok {
		return
	}
	p := room.Players[connID]
	if p == nil || p.IsConnected {
		return
	}
	if e.clock.Now().Sub(p.LastSeen) < RejoinGrace {
		return
	}

	log.Info().Str("room", room.Code).Str("player", p.DisplayName).Msg("pruning offline player")

	delete(room.Players, connID)
	delete(room.PlayerTokens, token)
	e.broadcastPlayerList(room)
}
