package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// taskKind names one class of timed transition. At most one timer per kind
// (per sub-key) is armed for a room at a time.
type taskKind string

const (
	taskRound1Intro  taskKind = "round1_intro"
	taskCategoryPick taskKind = "category_pick"
	taskR1Question   taskKind = "r1_question"
	taskR1Next       taskKind = "r1_next"
	taskFinalHandoff taskKind = "final_handoff"
	taskFinalIntro   taskKind = "final_intro"
	taskFinalNext    taskKind = "final_next"
	taskFinalReveal  taskKind = "final_reveal"
	taskFallLoop     taskKind = "fall_loop"
	taskPrune        taskKind = "prune"
)

// task is a scheduled transition. It carries everything needed to decide, at
// fire time, whether it still applies: the room is re-fetched by code and the
// expectations are checked against current state, so a stale timer is a no-op
// instead of a duplicate transition.
type task struct {
	Code             string
	Kind             taskKind
	ExpectPhase      game.Phase
	ExpectQuestionID string
	Token            string // prune tasks only
}

type timerKey struct {
	Code string
	Kind taskKind
	Sub  string
}

func (t task) key() timerKey {
	return timerKey{Code: t.Code, Kind: t.Kind, Sub: t.Token}
}

type armed struct {
	timer  clockwork.Timer
	ticker clockwork.Ticker
	stop   chan struct{}
}

// scheduler owns every armed timer in the process, keyed by room and kind.
// Arming a key always cancels its predecessor first, which is what keeps the
// "exactly one transition per timed phase" invariant.
type scheduler struct {
	engine *Engine
	clock  clockwork.Clock

	mu    sync.Mutex
	armed map[timerKey]*armed
}

func newScheduler(e *Engine, clock clockwork.Clock) *scheduler {
	return &scheduler{
		engine: e,
		clock:  clock,
		armed:  make(map[timerKey]*armed),
	}
}

// schedule arms a one-shot task, replacing any armed task with the same key.
func (s *scheduler) schedule(t task, d time.Duration) {
	key := t.key()
	s.cancel(key)

	a := &armed{
		timer: s.clock.NewTimer(d),
		stop:  make(chan struct{}),
	}

	s.mu.Lock()
	s.armed[key] = a
	s.mu.Unlock()

	go func() {
		select {
		case <-a.timer.Chan():
			s.remove(key, a)
			s.engine.runTask(t)
		case <-a.stop:
		}
	}()

	log.Debug().
		Str("room", t.Code).
		Str("kind", string(t.Kind)).
		Dur("after", d).
		Msg("task scheduled")
}

// startTicker arms a repeating task (the final round fall loop).
func (s *scheduler) startTicker(t task, interval time.Duration) {
	key := t.key()
	s.cancel(key)

	a := &armed{
		ticker: s.clock.NewTicker(interval),
		stop:   make(chan struct{}),
	}

	s.mu.Lock()
	s.armed[key] = a
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-a.ticker.Chan():
				s.engine.runTask(t)
			case <-a.stop:
				a.ticker.Stop()
				return
			}
		}
	}()
}

// cancel stops and removes the timer at key, if armed.
func (s *scheduler) cancel(key timerKey) {
	s.mu.Lock()
	a, ok := s.armed[key]
	if ok {
		delete(s.armed, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	close(a.stop)
	if a.timer != nil {
		stopAndDrainTimer(a.timer)
	}
}

// remove drops a fired timer from the map, unless it was already replaced.
func (s *scheduler) remove(key timerKey, fired *armed) {
	s.mu.Lock()
	if current, ok := s.armed[key]; ok && current == fired {
		delete(s.armed, key)
	}
	s.mu.Unlock()
}

// cancelAll tears down every timer a room owns. Must run before the room is
// deleted from the registry.
func (s *scheduler) cancelAll(code string) {
	for _, key := range s.keysFor(code, false) {
		s.cancel(key)
	}
}

// cancelGameTimers clears gameplay timers but leaves prune timers running,
// so a restart in the lobby does not resurrect ghost players.
func (s *scheduler) cancelGameTimers(code string) {
	for _, key := range s.keysFor(code, true) {
		s.cancel(key)
	}
}

func (s *scheduler) keysFor(code string, skipPrune bool) []timerKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []timerKey
	for key := range s.armed {
		if key.Code != code {
			continue
		}
		if skipPrune && key.Kind == taskPrune {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine never leaks a pending tick.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// runTask is the single entry point for fired timers. It re-fetches the room
// and re-validates the task's expectations under the room lock before
// dispatching, so a timer that outlived its phase does nothing.
func (e *Engine) runTask(t task) {
	ok := e.withRoom(t.Code, func(room *game.Room) {
		if t.ExpectPhase != "" && room.Phase != t.ExpectPhase {
			log.Debug().
				Str("room", t.Code).
				Str("kind", string(t.Kind)).
				Str("expected", string(t.ExpectPhase)).
				Str("actual", string(room.Phase)).
				Msg("stale task dropped")
			return
		}
		if t.ExpectQuestionID != "" && !currentQuestionIs(room, t.ExpectQuestionID) {
			log.Debug().
				Str("room", t.Code).
				Str("kind", string(t.Kind)).
				Str("question", t.ExpectQuestionID).
				Msg("stale question task dropped")
			return
		}

		switch t.Kind {
		case taskRound1Intro:
			e.startR1Block(room, "general", 1)
		case taskCategoryPick:
			e.onPickTimeout(room)
		case taskR1Question:
			e.onR1QuestionTimeout(room)
		case taskR1Next:
			e.startR1NextQuestion(room)
		case taskFinalHandoff:
			e.startFinalIntro(room)
		case taskFinalIntro:
			e.startFinalNextQuestion(room)
		case taskFinalReveal:
			e.finalizeFinalQuestion(room, "timeout")
		case taskFinalNext:
			e.onFinalRevealElapsed(room)
		case taskFallLoop:
			e.onFallTick(room)
		case taskPrune:
			e.onPruneTimer(room, t.Token)
		}
	})
	if !ok {
		log.Debug().
			Str("room", t.Code).
			Str("kind", string(t.Kind)).
			Msg("task fired for missing room")
	}
}

func currentQuestionIs(room *game.Room, questionID string) bool {
	switch {
	case room.RoundID == game.Round1 && room.R1 != nil && room.R1.CurrentQuestion != nil:
		return room.R1.CurrentQuestion.ID == questionID
	case room.RoundID == game.RoundFinal && room.Final != nil && room.Final.CurrentQuestion != nil:
		return room.Final.CurrentQuestion.ID == questionID
	}
	return false
}
