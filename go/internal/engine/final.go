package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// buildStartingHeights seeds podiums from Round 1 scores: linear between
// MinStartHeight and MaxStartHeight across this game's score range, then
// floored so every player has at least MinSurviveSec of fall time.
func buildStartingHeights(room *game.Room) map[string]float64 {
	minScore, maxScore := 0, 0
	first := true
	for _, p := range room.Players {
		if first {
			minScore, maxScore = p.Score, p.Score
			first = false
			continue
		}
		if p.Score < minScore {
			minScore = p.Score
		}
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}

	scoreRange := maxScore - minScore
	if scoreRange < 1 {
		scoreRange = 1
	}

	surviveFloor := game.Clamp01(FallRatePerSec * MinSurviveSec)

	heights := make(map[string]float64, len(room.Players))
	for id, p := range room.Players {
		t := float64(p.Score-minScore) / float64(scoreRange)
		h := MinStartHeight + t*(MaxStartHeight-MinStartHeight)
		if h < surviveFloor {
			h = surviveFloor
		}
		heights[id] = game.Clamp01(h)
	}
	return heights
}

// startFinalIntro transitions the room into the final round. Caller holds
// the room lock.
func (e *Engine) startFinalIntro(room *game.Room) {
	room.RoundID = game.RoundFinal
	room.Phase = game.PhaseFinalIntro

	alive := make([]string, 0, len(room.Players))
	for id := range room.Players {
		alive = append(alive, id)
	}

	room.Final = &game.FinalState{
		AlivePlayerIDs: alive,
		Heights:        buildStartingHeights(room),
		Answered:       make(map[string]game.FinalAnswer),
		QuestionsQueue: shuffled(e.content.FinalQuestions()),
		Phase:          game.FinalIntro,
	}

	log.Info().Str("room", room.Code).Int("alive", len(alive)).Msg("final round starting")

	e.broadcastState(room)
	e.broadcastPlayerList(room)

	e.sched.schedule(task{
		Code:        room.Code,
		Kind:        taskFinalIntro,
		ExpectPhase: game.PhaseFinalIntro,
	}, FinalIntroPause)
}

// eliminateIfOnFloor recomputes the alive set from current heights and ends
// the game when at most one player survives. Idempotent: it is called from
// the fall loop, from reveal, and from the inter-question check, and always
// works from current heights rather than any cached result. Returns true
// when the game ended. Caller holds the room lock.
func (e *Engine) eliminateIfOnFloor(room *game.Room) bool {
	if room.RoundID != game.RoundFinal || room.Final == nil {
		return false
	}

	alive := room.Final.AlivePlayerIDs[:0]
	for _, id := range room.Final.AlivePlayerIDs {
		if room.Final.Heights[id] > 0 {
			alive = append(alive, id)
		}
	}
	room.Final.AlivePlayerIDs = alive

	if len(alive) > 1 {
		return false
	}

	winnerID := ""
	if len(alive) == 1 {
		winnerID = alive[0]
	}
	e.completeFinal(room, winnerID, "")
	return true
}

// completeFinal ends the game. Caller holds the room lock.
func (e *Engine) completeFinal(room *game.Room, winnerID, reason string) {
	room.Phase = game.PhaseFinalComplete
	room.Final.Phase = game.FinalComplete
	room.Final.QuestionEndsAt = time.Time{}
	room.GameStatus = game.StatusFinished

	e.sched.cancel(timerKey{Code: room.Code, Kind: taskFallLoop})
	e.sched.cancel(timerKey{Code: room.Code, Kind: taskFinalReveal})

	payload := game.FinalCompletePayload{
		RoomCode:       room.Code,
		WinnerPlayerID: winnerID,
		Heights:        copyHeights(room.Final.Heights),
		Reason:         reason,
	}
	if p := room.Players[winnerID]; winnerID != "" && p != nil {
		payload.WinnerDisplayName = p.DisplayName
	}
	e.bc.ToRoom(room.Code, game.EventFinalComplete, payload)
	e.broadcastState(room)
	e.broadcastPlayerList(room)

	log.Info().Str("room", room.Code).Str("winner", winnerID).Str("reason", reason).Msg("final round complete")
}

// startFinalNextQuestion opens the next question, or ends the game when the
// pool or the field runs out. Caller holds the room lock.
func (e *Engine) startFinalNextQuestion(room *game.Room) {
	if room.RoundID != game.RoundFinal || room.Final == nil {
		return
	}

	room.Final.Answered = make(map[string]game.FinalAnswer)
	room.Final.CurrentQuestion = nil
	room.Final.QuestionEndsAt = time.Time{}
	e.sched.cancel(timerKey{Code: room.Code, Kind: taskFallLoop})

	if len(room.Final.AlivePlayerIDs) <= 1 {
		e.eliminateIfOnFloor(room)
		return
	}

	if len(room.Final.QuestionsQueue) == 0 {
		// Pool exhausted: highest podium among survivors takes it.
		bestID := ""
		bestH := -1.0
		for _, id := range room.Final.AlivePlayerIDs {
			if h := room.Final.Heights[id]; h > bestH {
				bestH = h
				bestID = id
			}
		}
		e.completeFinal(room, bestID, "OUT_OF_QUESTIONS")
		return
	}

	q := room.Final.QuestionsQueue[0]
	room.Final.QuestionsQueue = room.Final.QuestionsQueue[1:]

	limit := time.Duration(q.TimeLimitMs) * time.Millisecond
	room.Final.CurrentQuestion = &q
	room.Final.QuestionEndsAt = e.clock.Now().Add(limit)
	room.Final.Phase = game.FinalQuestionOpen
	room.Phase = game.PhaseFinalQuestion

	e.bc.ToRoom(room.Code, game.EventFinalQuestionPresented, game.FinalQuestionPayload{
		RoomCode:       room.Code,
		QuestionID:     q.ID,
		Prompt:         q.Prompt,
		Answers:        q.Answers,
		EndsAt:         toMillis(room.Final.QuestionEndsAt),
		AlivePlayerIDs: append([]string{}, room.Final.AlivePlayerIDs...),
		Heights:        copyHeights(room.Final.Heights),
	})
	e.broadcastState(room)

	room.Final.LastTickAt = e.clock.Now()
	e.sched.startTicker(task{
		Code:             room.Code,
		Kind:             taskFallLoop,
		ExpectPhase:      game.PhaseFinalQuestion,
		ExpectQuestionID: q.ID,
	}, FallTickInterval)

	e.sched.schedule(task{
		Code:             room.Code,
		Kind:             taskFinalReveal,
		ExpectPhase:      game.PhaseFinalQuestion,
		ExpectQuestionID: q.ID,
	}, limit)
}

// onFallTick decays the podium of every alive player who has not answered
// the open question. Anyone hitting the floor is eliminated immediately,
// mid-question. Caller holds the room lock; phase and question validated.
func (e *Engine) onFallTick(room *game.Room) {
	now := e.clock.Now()
	elapsed := now.Sub(room.Final.LastTickAt)
	if elapsed < 0 {
		elapsed = 0
	}
	room.Final.LastTickAt = now

	drop := FallRatePerSec * elapsed.Seconds()
	for _, id := range room.Final.AlivePlayerIDs {
		if _, answered := room.Final.Answered[id]; answered {
			continue
		}
		room.Final.Heights[id] = game.Clamp01(room.Final.Heights[id] - drop)
	}

	e.eliminateIfOnFloor(room)
}

// SubmitFinalAnswer locks in one player's single answer for the open
// question. When every alive player has answered, reveal happens
// immediately instead of waiting out the deadline.
func (e *Engine) SubmitFinalAnswer(connID, code, playerID, choice string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if room.Phase != game.PhaseFinalQuestion {
			ack = reject(ReasonQuestionNotOpen)
			return
		}

		pid := playerID
		if pid == "" {
			pid = connID
		}
		p := room.Players[pid]
		if p == nil {
			ack = reject(ReasonPlayerNotInRoom)
			return
		}
		if !room.Final.IsAlive(pid) {
			ack = reject(ReasonNotAlive)
			return
		}

		ch := normalizeChoice(choice)
		if !validChoice(ch) {
			ack = reject(ReasonInvalidChoice)
			return
		}
		if _, dup := room.Final.Answered[pid]; dup {
			ack = reject(ReasonAlreadyAnswered)
			return
		}
		if room.Final.CurrentQuestion == nil {
			ack = reject(ReasonNoCurrentQuestion)
			return
		}

		room.Final.Answered[pid] = game.FinalAnswer{Choice: ch, At: e.clock.Now()}
		ack = accept()

		e.bc.ToRoom(room.Code, game.EventFinalAnswerReceived, game.FinalAnswerReceivedPayload{
			RoomCode:    room.Code,
			PlayerID:    pid,
			DisplayName: p.DisplayName,
		})

		for _, id := range room.Final.AlivePlayerIDs {
			if _, answered := room.Final.Answered[id]; !answered {
				return
			}
		}
		e.finalizeFinalQuestion(room, "all_answered")
	})
	return ack
}

// finalizeFinalQuestion runs the reveal: stops the fall loop, applies the
// per-player height outcomes, eliminates floor-sitters, and either ends the
// game or arms the next-question pause. Caller holds the room lock.
func (e *Engine) finalizeFinalQuestion(room *game.Room, reason string) {
	if room.Phase != game.PhaseFinalQuestion {
		return
	}
	q := room.Final.CurrentQuestion
	if q == nil {
		return
	}

	e.sched.cancel(timerKey{Code: room.Code, Kind: taskFallLoop})
	e.sched.cancel(timerKey{Code: room.Code, Kind: taskFinalReveal})

	room.Phase = game.PhaseFinalReveal
	room.Final.Phase = game.FinalReveal
	room.Final.QuestionEndsAt = time.Time{}

	// First correct is decided by submission timestamp, not map order.
	firstCorrectID := ""
	var firstCorrectAt time.Time
	for _, id := range room.Final.AlivePlayerIDs {
		a, ok := room.Final.Answered[id]
		if !ok || a.Choice != q.Correct {
			continue
		}
		if firstCorrectID == "" || a.At.Before(firstCorrectAt) {
			firstCorrectID = id
			firstCorrectAt = a.At
		}
	}

	lowestBefore := room.Final.LowestAliveHeight()
	results := make(map[string]game.FinalPlayerResult, len(room.Final.AlivePlayerIDs))

	for _, id := range room.Final.AlivePlayerIDs {
		before := room.Final.Heights[id]
		a, answered := room.Final.Answered[id]

		var outcome game.FinalOutcome
		var delta float64
		switch {
		case !answered:
			outcome = game.OutcomeNoAnswer
			delta = -NoAnswerDrop
		case a.Choice != q.Correct:
			outcome = game.OutcomeWrong
			delta = -WrongDrop
		case id == firstCorrectID:
			outcome = game.OutcomeFirstCorrect
			// The further behind the lowest survivor, the bigger the boost.
			rel := game.Clamp01((lowestBefore - before) / 0.5)
			delta = BoostBase + rel*BoostElasticity
		default:
			outcome = game.OutcomeCorrect
		}

		room.Final.Heights[id] = game.Clamp01(before + delta)

		result := game.FinalPlayerResult{
			Outcome:      outcome,
			Delta:        delta,
			HeightBefore: before,
			HeightAfter:  room.Final.Heights[id],
		}
		if answered {
			result.Choice = a.Choice
		}
		results[id] = result
	}

	ended := e.eliminateIfOnFloor(room)

	payload := game.FinalRevealPayload{
		RoomCode:             room.Code,
		QuestionID:           q.ID,
		CorrectChoice:        q.Correct,
		FirstCorrectPlayerID: firstCorrectID,
		Results:              results,
		Heights:              copyHeights(room.Final.Heights),
		AlivePlayerIDs:       append([]string{}, room.Final.AlivePlayerIDs...),
		Reason:               reason,
	}
	if p := room.Players[firstCorrectID]; firstCorrectID != "" && p != nil {
		payload.FirstCorrectDisplayName = p.DisplayName
	}
	e.bc.ToRoom(room.Code, game.EventFinalReveal, payload)
	e.broadcastState(room)
	e.broadcastPlayerList(room)

	if ended {
		return
	}

	e.sched.schedule(task{
		Code:        room.Code,
		Kind:        taskFinalNext,
		ExpectPhase: game.PhaseFinalReveal,
	}, FinalRevealPause)
}

// onFinalRevealElapsed advances past the reveal pause. Caller holds the
// room lock; phase validated.
func (e *Engine) onFinalRevealElapsed(room *game.Room) {
	if len(room.Final.AlivePlayerIDs) <= 1 {
		e.eliminateIfOnFloor(room)
		return
	}
	e.startFinalNextQuestion(room)
}
