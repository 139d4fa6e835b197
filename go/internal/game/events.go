package game

// EventType names one server-to-client event. These form the wire contract
// with host and phone clients.
type EventType string

const (
	EventRoomCreated       EventType = "room_created"
	EventStateChanged      EventType = "state_changed"
	EventPlayerListUpdated EventType = "player_list_updated"
	EventOptionsUpdated    EventType = "options_updated"
	EventPlayerKicked      EventType = "player_kicked"
	EventError             EventType = "error"

	EventR1CategoryPick      EventType = "r1_category_pick"
	EventR1QuestionPresented EventType = "r1_question_presented"
	EventR1FastestState      EventType = "r1_fastest_state"
	EventR1AnswerWinner      EventType = "r1_answer_winner"
	EventR1AnswerLockedOut   EventType = "r1_answer_locked_out"
	EventR1AnswerTimeout     EventType = "r1_answer_timeout"
	EventR1RoundComplete     EventType = "r1_round_complete"

	EventFinalQuestionPresented EventType = "final_question_presented"
	EventFinalAnswerReceived    EventType = "final_answer_received"
	EventFinalReveal            EventType = "final_reveal"
	EventFinalComplete          EventType = "final_complete"
)

// Error codes broadcast with EventError.
const (
	ErrCodeRoomClosed         = "ROOM_CLOSED"
	ErrCodeCreateRoomFailed   = "CREATE_ROOM_FAILED"
	ErrCodeNotEnoughQuestions = "CONTENT_NOT_ENOUGH_QUESTIONS"
	ErrCodeNoEligibleCategory = "NO_ELIGIBLE_CATEGORIES"
)

// CategoryOption is a pickable category shown to the chooser.
type CategoryOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomCreatedPayload acknowledges a new room to its host.
type RoomCreatedPayload struct {
	RoomCode   string `json:"roomCode"`
	MaxPlayers int    `json:"maxPlayers"`
}

// R1Snapshot is the Round 1 slice of a state_changed broadcast.
type R1Snapshot struct {
	BlockIndex          int              `json:"blockIndex"`
	CurrentCategoryID   string           `json:"currentCategoryId,omitempty"`
	CurrentCategoryName string           `json:"currentCategoryName,omitempty"`
	ChooserPlayerID     string           `json:"chooserPlayerId,omitempty"`
	ChooserDisplayName  string           `json:"chooserDisplayName,omitempty"`
	PickOptions         []CategoryOption `json:"pickOptions,omitempty"`
	PickEndsAt          int64            `json:"pickEndsAt,omitempty"`
	QuestionEndsAt      int64            `json:"questionEndsAt,omitempty"`
}

// FinalSnapshot is the final round slice of a state_changed broadcast. The
// correct answer for an open question is deliberately absent.
type FinalSnapshot struct {
	QuestionID     string             `json:"questionId,omitempty"`
	Prompt         string             `json:"prompt,omitempty"`
	Answers        *[4]string         `json:"answers,omitempty"`
	EndsAt         int64              `json:"endsAt,omitempty"`
	AlivePlayerIDs []string           `json:"alivePlayerIds"`
	Heights        map[string]float64 `json:"heights"`
	AnsweredIDs    []string           `json:"answeredPlayerIds"`
	Phase          FinalPhase         `json:"phase"`
}

// StateChangedPayload is the room-wide phase snapshot broadcast after every
// externally observable mutation.
type StateChangedPayload struct {
	RoomCode   string         `json:"roomCode"`
	GameStatus GameStatus     `json:"gameStatus"`
	Options    Options        `json:"options"`
	State      Phase          `json:"state"`
	RoundID    int            `json:"roundId"`
	R1         *R1Snapshot    `json:"r1,omitempty"`
	Final      *FinalSnapshot `json:"final,omitempty"`
}

// PlayerListPayload carries the current roster.
type PlayerListPayload struct {
	RoomCode string          `json:"roomCode"`
	Players  []PlayerSummary `json:"players"`
}

// OptionsPayload carries the room's settings and what they may grow into.
type OptionsPayload struct {
	RoomCode             string     `json:"roomCode"`
	GameStatus           GameStatus `json:"gameStatus"`
	Options              Options    `json:"options"`
	AvailableMiddleGames []string   `json:"availableMiddleGames"`
}

// CategoryPickPayload opens a timed category choice for one player.
type CategoryPickPayload struct {
	RoomCode           string           `json:"roomCode"`
	ChooserPlayerID    string           `json:"chooserPlayerId"`
	ChooserDisplayName string           `json:"chooserDisplayName"`
	Options            []CategoryOption `json:"options"`
	TimeoutMs          int64            `json:"timeoutMs"`
	EndsAt             int64            `json:"endsAt"`
}

// QuestionPresentedPayload shows a question. Never includes the correct
// choice while the question is open.
type QuestionPresentedPayload struct {
	RoomCode   string    `json:"roomCode"`
	QuestionID string    `json:"questionId"`
	Prompt     string    `json:"prompt"`
	Answers    [4]string `json:"answers"`
	EndsAt     int64     `json:"endsAt"`
}

// FastestWinner is the race winner slice of a fastest-state snapshot.
type FastestWinner struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Choice      string `json:"choice"`
}

// FastestStatePayload is the live race record for the open question.
type FastestStatePayload struct {
	RoomCode           string         `json:"roomCode"`
	QuestionID         string         `json:"questionId,omitempty"`
	IsOpen             bool           `json:"isOpen"`
	Winner             *FastestWinner `json:"winner"`
	LockedOutPlayerIDs []string       `json:"lockedOutPlayerIds"`
	AnsweredPlayerIDs  []string       `json:"answeredPlayerIds"`
	EndsAt             int64          `json:"endsAt,omitempty"`
}

// AnswerResultPayload reports a winning or locking-out submission.
type AnswerResultPayload struct {
	RoomCode      string `json:"roomCode"`
	QuestionID    string `json:"questionId"`
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	Chosen        string `json:"chosen"`
	CorrectChoice string `json:"correctChoice"`
	ScoreDelta    int    `json:"scoreDelta"`
	NewScore      int    `json:"newScore"`
}

// AnswerTimeoutPayload reports a question closing with no winner.
type AnswerTimeoutPayload struct {
	RoomCode              string `json:"roomCode"`
	QuestionID            string `json:"questionId"`
	CorrectChoice         string `json:"correctChoice"`
	ScoreDeltaIfNoAttempt int    `json:"scoreDeltaIfNoAttempt"`
}

// RoundCompletePayload marks the end of Round 1.
type RoundCompletePayload struct {
	RoomCode string `json:"roomCode"`
}

// FinalQuestionPayload opens a final round question.
type FinalQuestionPayload struct {
	RoomCode       string             `json:"roomCode"`
	QuestionID     string             `json:"questionId"`
	Prompt         string             `json:"prompt"`
	Answers        [4]string          `json:"answers"`
	EndsAt         int64              `json:"endsAt"`
	AlivePlayerIDs []string           `json:"alivePlayerIds"`
	Heights        map[string]float64 `json:"heights"`
}

// FinalAnswerReceivedPayload tells the room someone locked in, without
// revealing the choice.
type FinalAnswerReceivedPayload struct {
	RoomCode    string `json:"roomCode"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

// FinalOutcome classifies one player's reveal result.
type FinalOutcome string

const (
	OutcomeNoAnswer     FinalOutcome = "no_answer"
	OutcomeWrong        FinalOutcome = "wrong"
	OutcomeCorrect      FinalOutcome = "correct"
	OutcomeFirstCorrect FinalOutcome = "first_correct"
)

// FinalPlayerResult is one player's reveal line.
type FinalPlayerResult struct {
	Outcome      FinalOutcome `json:"outcome"`
	Choice       string       `json:"choice,omitempty"`
	Delta        float64      `json:"delta"`
	HeightBefore float64      `json:"heightBefore"`
	HeightAfter  float64      `json:"heightAfter"`
}

// FinalRevealPayload publishes the outcome of a closed final question.
type FinalRevealPayload struct {
	RoomCode                string                       `json:"roomCode"`
	QuestionID              string                       `json:"questionId"`
	CorrectChoice           string                       `json:"correctChoice"`
	FirstCorrectPlayerID    string                       `json:"firstCorrectPlayerId,omitempty"`
	FirstCorrectDisplayName string                       `json:"firstCorrectDisplayName,omitempty"`
	Results                 map[string]FinalPlayerResult `json:"resultsByPlayerId"`
	Heights                 map[string]float64           `json:"heights"`
	AlivePlayerIDs          []string                     `json:"alivePlayerIds"`
	Reason                  string                       `json:"reason"`
}

// FinalCompletePayload crowns the winner (empty id when everyone fell).
type FinalCompletePayload struct {
	RoomCode          string             `json:"roomCode"`
	WinnerPlayerID    string             `json:"winnerPlayerId,omitempty"`
	WinnerDisplayName string             `json:"winnerDisplayName,omitempty"`
	Heights           map[string]float64 `json:"heights"`
	Reason            string             `json:"reason,omitempty"`
}

// ErrorPayload is a room-level error broadcast.
type ErrorPayload struct {
	RoomCode string `json:"roomCode,omitempty"`
	Code     string `json:"code"`
}

// KickedPayload is sent to the kicked player's connection.
type KickedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}
