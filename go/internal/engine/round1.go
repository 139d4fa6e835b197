package engine

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/content"
	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// pickableCategories are the Round 1 categories offered to choosers; the
// fixed opening "general" block is excluded.
func pickableCategories() []string {
	return content.Round1CategoryIDs[1:]
}

func shuffled[T any](in []T) []T {
	out := append([]T{}, in...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// pickUnusedQuestions reserves n not-yet-served questions from a category,
// marking them used game-wide so no question repeats. Returns nil when the
// category cannot cover a full block.
func (e *Engine) pickUnusedQuestions(room *game.Room, categoryID string, n int) []content.Question {
	var available []content.Question
	for _, q := range e.content.QuestionsFor(categoryID) {
		if !room.UsedQuestionIDs[q.ID] {
			available = append(available, q)
		}
	}
	if len(available) < n {
		return nil
	}

	picked := shuffled(available)[:n]
	for _, q := range picked {
		room.UsedQuestionIDs[q.ID] = true
	}
	return picked
}

// lastPlaceChooser returns the player with the strictly lowest score; ties
// are broken uniformly at random.
func lastPlaceChooser(room *game.Room) string {
	if len(room.Players) == 0 {
		return ""
	}

	minScore := -1
	for _, p := range room.Players {
		if minScore < 0 || p.Score < minScore {
			minScore = p.Score
		}
	}

	var tied []string
	for id, p := range room.Players {
		if p.Score == minScore {
			tied = append(tied, id)
		}
	}
	return tied[rand.Intn(len(tied))]
}

// eligibleCategories lists categories not yet played this game that still
// have a full block of unused questions.
func (e *Engine) eligibleCategories(room *game.Room) []string {
	var eligible []string
	for _, catID := range pickableCategories() {
		if room.R1.UsedCategoryIDs[catID] {
			continue
		}
		unused := 0
		for _, q := range e.content.QuestionsFor(catID) {
			if !room.UsedQuestionIDs[q.ID] {
				unused++
			}
		}
		if unused >= game.QuestionsPerBlock {
			eligible = append(eligible, catID)
		}
	}
	return eligible
}

// startR1Block reserves a block of questions and serves the first one.
// Caller holds the room lock.
func (e *Engine) startR1Block(room *game.Room, categoryID string, blockIndex int) {
	picked := e.pickUnusedQuestions(room, categoryID, game.QuestionsPerBlock)
	if picked == nil {
		e.enterErrorState(room, game.ErrCodeNotEnoughQuestions)
		return
	}

	room.R1.BlockIndex = blockIndex
	room.R1.CurrentCategoryID = categoryID
	room.R1.QuestionsQueue = picked
	room.R1.CurrentQuestion = nil
	room.R1.PickEndsAt = time.Time{}
	room.R1.QuestionEndsAt = time.Time{}

	if categoryID != "general" {
		room.R1.UsedCategoryIDs[categoryID] = true
	}

	log.Info().
		Str("room", room.Code).
		Str("category", categoryID).
		Int("block", blockIndex).
		Msg("round 1 block started")

	e.startR1NextQuestion(room)
}

// startR1CategoryPick opens the timed category choice for the current
// last-place player. Caller holds the room lock.
func (e *Engine) startR1CategoryPick(room *game.Room) {
	room.Phase = game.PhaseRound1Pick
	room.RoundID = game.Round1

	chooserID := lastPlaceChooser(room)
	eligible := e.eligibleCategories(room)
	options := shuffled(eligible)
	if len(options) > CategoryPickOptions {
		options = options[:CategoryPickOptions]
	}

	room.R1.ChooserPlayerID = chooserID
	room.R1.PickOptions = options
	room.R1.PickEndsAt = e.clock.Now().Add(CategoryPickTimeout)
	room.R1.QuestionEndsAt = time.Time{}

	e.broadcastState(room)

	pickPayload := game.CategoryPickPayload{
		RoomCode:        room.Code,
		ChooserPlayerID: chooserID,
		TimeoutMs:       CategoryPickTimeout.Milliseconds(),
		EndsAt:          toMillis(room.R1.PickEndsAt),
	}
	if p := room.Players[chooserID]; p != nil {
		pickPayload.ChooserDisplayName = p.DisplayName
	}
	for _, id := range options {
		pickPayload.Options = append(pickPayload.Options, game.CategoryOption{
			ID:   id,
			Name: e.content.CategoryName(id),
		})
	}
	e.bc.ToRoom(room.Code, game.EventR1CategoryPick, pickPayload)

	e.sched.schedule(task{
		Code:        room.Code,
		Kind:        taskCategoryPick,
		ExpectPhase: game.PhaseRound1Pick,
	}, CategoryPickTimeout)
}

// onPickTimeout auto-selects the first offered option when the chooser never
// picked. Caller holds the room lock; phase already validated.
func (e *Engine) onPickTimeout(room *game.Room) {
	room.R1.PickEndsAt = time.Time{}

	if len(room.R1.PickOptions) == 0 {
		e.enterErrorState(room, game.ErrCodeNoEligibleCategory)
		return
	}

	fallback := room.R1.PickOptions[0]
	log.Info().Str("room", room.Code).Str("category", fallback).Msg("category pick timed out, auto-picking")
	e.startR1Block(room, fallback, room.R1.BlockIndex+1)
}

// PickCategory handles the chooser's explicit pick. Any valid pick cancels
// the pick deadline, so exactly one of pick/timeout transitions the room.
func (e *Engine) PickCategory(connID, code, playerID, categoryID string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if room.Phase != game.PhaseRound1Pick {
			ack = reject(ReasonPickNotOpen)
			return
		}

		pid := playerID
		if pid == "" {
			pid = connID
		}
		if room.R1.ChooserPlayerID == "" || pid != room.R1.ChooserPlayerID {
			ack = reject(ReasonNotChooser)
			return
		}

		valid := false
		for _, id := range room.R1.PickOptions {
			if id == categoryID {
				valid = true
				break
			}
		}
		if !valid {
			ack = reject(ReasonInvalidPick)
			return
		}

		e.sched.cancel(timerKey{Code: room.Code, Kind: taskCategoryPick})
		room.R1.PickEndsAt = time.Time{}

		ack = accept()
		e.startR1Block(room, categoryID, room.R1.BlockIndex+1)
	})
	return ack
}

// startR1NextQuestion pops the block queue and opens the next question, or
// advances the block/round when the queue is empty. Caller holds the room
// lock.
func (e *Engine) startR1NextQuestion(room *game.Room) {
	e.sched.cancel(timerKey{Code: room.Code, Kind: taskR1Question})
	room.R1.QuestionEndsAt = time.Time{}

	if len(room.R1.QuestionsQueue) == 0 {
		if room.R1.BlockIndex >= game.Round1BlocksTotal {
			room.Phase = game.PhaseRound1Complete
			room.R1.PickEndsAt = time.Time{}
			room.R1.QuestionEndsAt = time.Time{}

			e.broadcastState(room)
			e.bc.ToRoom(room.Code, game.EventR1RoundComplete, game.RoundCompletePayload{RoomCode: room.Code})

			// Middle rounds would branch here once they exist.
			e.sched.schedule(task{
				Code:        room.Code,
				Kind:        taskFinalHandoff,
				ExpectPhase: game.PhaseRound1Complete,
			}, PostQuestionPause)
			return
		}

		e.startR1CategoryPick(room)
		return
	}

	next := room.R1.QuestionsQueue[0]
	room.R1.QuestionsQueue = room.R1.QuestionsQueue[1:]

	room.R1.CurrentQuestion = &next
	room.R1.QuestionEndsAt = e.clock.Now().Add(time.Duration(next.TimeLimitMs) * time.Millisecond)
	room.R1.Fastest = game.NewFastestState()
	room.R1.PickEndsAt = time.Time{}

	room.Phase = game.PhaseRound1Question
	room.RoundID = game.Round1

	e.broadcastState(room)
	e.broadcastFastestState(room)
	e.bc.ToRoom(room.Code, game.EventR1QuestionPresented, game.QuestionPresentedPayload{
		RoomCode:   room.Code,
		QuestionID: next.ID,
		Prompt:     next.Prompt,
		Answers:    next.Answers,
		EndsAt:     toMillis(room.R1.QuestionEndsAt),
	})

	e.sched.schedule(task{
		Code:             room.Code,
		Kind:             taskR1Question,
		ExpectPhase:      game.PhaseRound1Question,
		ExpectQuestionID: next.ID,
	}, time.Duration(next.TimeLimitMs)*time.Millisecond)
}

// onR1QuestionTimeout closes a question nobody won: every player who never
// attempted takes the timeout penalty. Caller holds the room lock; phase and
// question already validated.
func (e *Engine) onR1QuestionTimeout(room *game.Room) {
	q := room.R1.CurrentQuestion
	fastest := room.R1.Fastest
	if q == nil || fastest == nil || fastest.WinnerPlayerID != "" {
		return
	}

	room.R1.QuestionEndsAt = time.Time{}

	for _, p := range room.Players {
		if !fastest.Answered[p.PlayerID] {
			game.AddScore(p, game.ScoreTimeout)
		}
	}

	e.bc.ToRoom(room.Code, game.EventR1AnswerTimeout, game.AnswerTimeoutPayload{
		RoomCode:              room.Code,
		QuestionID:            q.ID,
		CorrectChoice:         q.Correct,
		ScoreDeltaIfNoAttempt: game.ScoreTimeout,
	})
	e.broadcastPlayerList(room)
	e.broadcastFastestState(room)

	e.sched.schedule(task{
		Code:        room.Code,
		Kind:        taskR1Next,
		ExpectPhase: game.PhaseRound1Question,
	}, PostQuestionPause)
}

// SubmitRound1Answer resolves one buzz in the fastest-correct race. The
// first submission matching the correct answer wins outright; winner
// assignment and deadline cancellation happen inside this one locked
// handler, so no later submission can contest the result.
func (e *Engine) SubmitRound1Answer(connID, code, playerID, choice string) Ack {
	ack := reject(ReasonRoomNotFound)
	e.withRoom(normalizeCode(code), func(room *game.Room) {
		if room.Phase != game.PhaseRound1Question {
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

		ch := normalizeChoice(choice)
		if !validChoice(ch) {
			ack = reject(ReasonInvalidChoice)
			return
		}

		q := room.R1.CurrentQuestion
		fastest := room.R1.Fastest
		if q == nil || fastest == nil {
			ack = reject(ReasonNoCurrentQuestion)
			return
		}
		if fastest.WinnerPlayerID != "" {
			ack = reject(ReasonAlreadyHasWinner)
			return
		}
		if fastest.LockedOut[pid] {
			ack = reject(ReasonLockedOut)
			return
		}

		// Attempting at all exempts the player from the timeout penalty,
		// even if someone else wins first.
		fastest.Answered[pid] = true

		if ch == q.Correct {
			fastest.WinnerPlayerID = pid
			fastest.WinnerChoice = ch

			e.sched.cancel(timerKey{Code: room.Code, Kind: taskR1Question})
			room.R1.QuestionEndsAt = time.Time{}

			game.AddScore(p, game.ScoreCorrect)

			e.bc.ToRoom(room.Code, game.EventR1AnswerWinner, game.AnswerResultPayload{
				RoomCode:      room.Code,
				QuestionID:    q.ID,
				PlayerID:      pid,
				DisplayName:   p.DisplayName,
				Chosen:        ch,
				CorrectChoice: q.Correct,
				ScoreDelta:    game.ScoreCorrect,
				NewScore:      p.Score,
			})
			e.broadcastPlayerList(room)
			e.broadcastFastestState(room)

			ack = Ack{OK: true, Data: map[string]any{"correct": true}}

			e.sched.schedule(task{
				Code:        room.Code,
				Kind:        taskR1Next,
				ExpectPhase: game.PhaseRound1Question,
			}, PostQuestionPause)
			return
		}

		fastest.LockedOut[pid] = true
		game.AddScore(p, game.ScoreWrong)

		e.bc.ToRoom(room.Code, game.EventR1AnswerLockedOut, game.AnswerResultPayload{
			RoomCode:      room.Code,
			QuestionID:    q.ID,
			PlayerID:      pid,
			DisplayName:   p.DisplayName,
			Chosen:        ch,
			CorrectChoice: q.Correct,
			ScoreDelta:    game.ScoreWrong,
			NewScore:      p.Score,
		})
		e.broadcastPlayerList(room)
		e.broadcastFastestState(room)

		ack = Ack{OK: true, Data: map[string]any{"correct": false}}
	})
	return ack
}
