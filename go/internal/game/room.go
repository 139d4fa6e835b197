package game

import (
	"sync"
	"time"

	"github.com/mcaldwell/podiumquiz/go/internal/content"
)

// GameStatus gates lobby-only operations such as option edits and kicks.
type GameStatus string

const (
	StatusLobby      GameStatus = "lobby"
	StatusInProgress GameStatus = "in_progress"
	StatusFinished   GameStatus = "finished"
)

// Phase is the fine-grained room state machine position.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseRound1Intro    Phase = "ROUND_1_INTRO"
	PhaseRound1Pick     Phase = "ROUND_1_CATEGORY_PICK"
	PhaseRound1Question Phase = "ROUND_1_QUESTION_OPEN"
	PhaseRound1Complete Phase = "ROUND_1_COMPLETE"
	PhaseFinalIntro     Phase = "FINAL_INTRO"
	PhaseFinalQuestion  Phase = "FINAL_QUESTION_OPEN"
	PhaseFinalReveal    Phase = "FINAL_REVEAL"
	PhaseFinalComplete  Phase = "FINAL_COMPLETE"
	PhaseError          Phase = "ERROR"
)

// Round identifiers. Middle rounds would slot between 1 and 99.
const (
	RoundLobby = 0
	Round1     = 1
	RoundFinal = 99
)

// Round 1 structure.
const (
	Round1BlocksTotal = 4
	QuestionsPerBlock = 6
)

// DefaultMaxPlayers bounds a room when the host does not specify a size.
const DefaultMaxPlayers = 6

// Player is one participant. The record survives reconnects: it is moved to
// the new connection id, never recreated, so score and avatar persist.
type Player struct {
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	AvatarID    string    `json:"avatarId"`
	Token       string    `json:"-"`
	IsConnected bool      `json:"isConnected"`
	LastSeen    time.Time `json:"-"`
}

// FastestState is the per-question race record for Round 1. WinnerPlayerID
// is set at most once per question.
type FastestState struct {
	WinnerPlayerID string
	WinnerChoice   string
	LockedOut      map[string]bool
	Answered       map[string]bool
}

// NewFastestState returns an empty race record for a freshly opened question.
func NewFastestState() *FastestState {
	return &FastestState{
		LockedOut: make(map[string]bool),
		Answered:  make(map[string]bool),
	}
}

// Round1State is the Round 1 sub-state of a room.
type Round1State struct {
	BlockIndex        int
	UsedCategoryIDs   map[string]bool
	CurrentCategoryID string
	QuestionsQueue    []content.Question
	CurrentQuestion   *content.Question
	Fastest           *FastestState

	ChooserPlayerID string
	PickOptions     []string
	PickEndsAt      time.Time
	QuestionEndsAt  time.Time
}

// NewRound1State returns the state for a game about to enter Round 1.
func NewRound1State() *Round1State {
	return &Round1State{UsedCategoryIDs: make(map[string]bool)}
}

// FinalPhase tracks where the elimination round is within a question cycle.
type FinalPhase string

const (
	FinalIntro        FinalPhase = "intro"
	FinalQuestionOpen FinalPhase = "question_open"
	FinalReveal       FinalPhase = "reveal"
	FinalComplete     FinalPhase = "complete"
)

// FinalAnswer is one player's single submission for the current question.
type FinalAnswer struct {
	Choice string
	At     time.Time
}

// FinalState is the Final Podium sub-state of a room.
type FinalState struct {
	AlivePlayerIDs  []string
	Heights         map[string]float64
	Answered        map[string]FinalAnswer
	CurrentQuestion *content.Question
	QuestionEndsAt  time.Time
	QuestionsQueue  []content.Question
	Phase           FinalPhase
	LastTickAt      time.Time
}

// Room is one isolated game instance. All mutable fields are guarded by Mu;
// handlers and timer callbacks lock the room for their entire body, which is
// what makes the fastest-correct race resolution safe.
type Room struct {
	Mu sync.Mutex

	Code       string
	HostConnID string
	MaxPlayers int

	GameStatus GameStatus
	Phase      Phase
	RoundID    int

	Players      map[string]*Player // connection id -> player
	PlayerTokens map[string]string  // durable token -> connection id
	KickedTokens map[string]bool

	UsedQuestionIDs map[string]bool

	Options Options

	R1    *Round1State
	Final *FinalState

	// Closed is set when the room is removed from the registry so a stale
	// timer that already fetched the pointer still no-ops.
	Closed bool
}

// NewRoom returns a lobby-state room owned by the given host connection.
func NewRoom(code, hostConnID string, maxPlayers int) *Room {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Room{
		Code:            code,
		HostConnID:      hostConnID,
		MaxPlayers:      maxPlayers,
		GameStatus:      StatusLobby,
		Phase:           PhaseLobby,
		RoundID:         RoundLobby,
		Players:         make(map[string]*Player),
		PlayerTokens:    make(map[string]string),
		KickedTokens:    make(map[string]bool),
		UsedQuestionIDs: make(map[string]bool),
		Options:         DefaultOptions(),
		R1:              NewRound1State(),
	}
}

// PlayerSummary is the public projection of a player for list broadcasts.
type PlayerSummary struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	IsConnected bool   `json:"isConnected"`
	AvatarID    string `json:"avatarId"`
}

// PlayerList returns summaries for every player currently in the room.
func (r *Room) PlayerList() []PlayerSummary {
	out := make([]PlayerSummary, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, PlayerSummary{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			IsConnected: p.IsConnected,
			AvatarID:    p.AvatarID,
		})
	}
	return out
}

// IsAlive reports whether a player is still standing in the final round.
func (f *FinalState) IsAlive(playerID string) bool {
	for _, id := range f.AlivePlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// LowestAliveHeight is the lowest podium among surviving players, used by
// the catch-up boost. Zero when nobody is alive.
func (f *FinalState) LowestAliveHeight() float64 {
	low := -1.0
	for _, id := range f.AlivePlayerIDs {
		h := f.Heights[id]
		if low < 0 || h < low {
			low = h
		}
	}
	if low < 0 {
		return 0
	}
	return low
}
