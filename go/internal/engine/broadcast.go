package engine

import (
	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// broadcastState pushes the room-wide phase snapshot. The final slice never
// carries the correct choice for an open question.
func (e *Engine) broadcastState(room *game.Room) {
	e.bc.ToRoom(room.Code, game.EventStateChanged, e.buildStateSnapshot(room))
}

func (e *Engine) buildStateSnapshot(room *game.Room) game.StateChangedPayload {
	payload := game.StateChangedPayload{
		RoomCode:   room.Code,
		GameStatus: room.GameStatus,
		Options:    room.Options,
		State:      room.Phase,
		RoundID:    room.RoundID,
	}

	if room.RoundID == game.Round1 && room.R1 != nil {
		r1 := &game.R1Snapshot{
			BlockIndex:        room.R1.BlockIndex,
			CurrentCategoryID: room.R1.CurrentCategoryID,
			ChooserPlayerID:   room.R1.ChooserPlayerID,
			PickEndsAt:        toMillis(room.R1.PickEndsAt),
			QuestionEndsAt:    toMillis(room.R1.QuestionEndsAt),
		}
		if room.R1.CurrentCategoryID != "" {
			r1.CurrentCategoryName = e.content.CategoryName(room.R1.CurrentCategoryID)
		}
		if p := room.Players[room.R1.ChooserPlayerID]; p != nil {
			r1.ChooserDisplayName = p.DisplayName
		}
		for _, id := range room.R1.PickOptions {
			r1.PickOptions = append(r1.PickOptions, game.CategoryOption{
				ID:   id,
				Name: e.content.CategoryName(id),
			})
		}
		payload.R1 = r1
	}

	if room.RoundID == game.RoundFinal && room.Final != nil {
		f := &game.FinalSnapshot{
			EndsAt:         toMillis(room.Final.QuestionEndsAt),
			AlivePlayerIDs: append([]string{}, room.Final.AlivePlayerIDs...),
			Heights:        copyHeights(room.Final.Heights),
			AnsweredIDs:    answeredIDs(room.Final.Answered),
			Phase:          room.Final.Phase,
		}
		if q := room.Final.CurrentQuestion; q != nil {
			f.QuestionID = q.ID
			f.Prompt = q.Prompt
			answers := q.Answers
			f.Answers = &answers
		}
		payload.Final = f
	}

	return payload
}

func (e *Engine) broadcastPlayerList(room *game.Room) {
	e.bc.ToRoom(room.Code, game.EventPlayerListUpdated, game.PlayerListPayload{
		RoomCode: room.Code,
		Players:  room.PlayerList(),
	})
}

func (e *Engine) broadcastOptions(room *game.Room) {
	e.bc.ToRoom(room.Code, game.EventOptionsUpdated, game.OptionsPayload{
		RoomCode:             room.Code,
		GameStatus:           room.GameStatus,
		Options:              room.Options,
		AvailableMiddleGames: game.AvailableMiddleGames(room),
	})
}

// broadcastFastestState publishes the live race record: winner, lockouts,
// and who has attempted.
func (e *Engine) broadcastFastestState(room *game.Room) {
	e.bc.ToRoom(room.Code, game.EventR1FastestState, e.buildFastestState(room))
}

func (e *Engine) buildFastestState(room *game.Room) game.FastestStatePayload {
	payload := game.FastestStatePayload{
		RoomCode: room.Code,
		IsOpen:   room.Phase == game.PhaseRound1Question,
		EndsAt:   toMillis(room.R1.QuestionEndsAt),
	}
	if q := room.R1.CurrentQuestion; q != nil {
		payload.QuestionID = q.ID
	}
	if f := room.R1.Fastest; f != nil {
		if p := room.Players[f.WinnerPlayerID]; f.WinnerPlayerID != "" && p != nil {
			payload.Winner = &game.FastestWinner{
				PlayerID:    f.WinnerPlayerID,
				DisplayName: p.DisplayName,
				Choice:      f.WinnerChoice,
			}
		}
		payload.LockedOutPlayerIDs = keys(f.LockedOut)
		payload.AnsweredPlayerIDs = keys(f.Answered)
	} else {
		payload.LockedOutPlayerIDs = []string{}
		payload.AnsweredPlayerIDs = []string{}
	}
	return payload
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func copyHeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func answeredIDs(m map[string]game.FinalAnswer) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
