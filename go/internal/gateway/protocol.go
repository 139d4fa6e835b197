package gateway

import "encoding/json"

// Client message types. Mirrors the host:/phone: split of the original
// client apps: hosts create, configure and end rooms; phones join and
// answer.
const (
	MsgCreateRoom     = "host:create_room"
	MsgUpdateOptions  = "host:update_options"
	MsgKickPlayer     = "host:kick_player"
	MsgStartGame      = "host:start_game"
	MsgEndGame        = "host:end_game"
	MsgJoinRoom       = "phone:join_room"
	MsgRejoinRoom     = "phone:rejoin_room"
	MsgR1Answer       = "phone:r1_answer_tap"
	MsgR1PickCategory = "phone:r1_pick_category"
	MsgFinalAnswer    = "phone:final_answer_tap"
)

// ClientMessage is the inbound wire envelope. Seq is echoed on the ack so
// clients can match request to response.
type ClientMessage struct {
	Seq  int64           `json:"seq"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClientAck is the response envelope for one ClientMessage.
type ClientAck struct {
	Seq    int64          `json:"seq"`
	OK     bool           `json:"ok"`
	Reason string         `json:"reason,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Request payloads.

type createRoomRequest struct {
	MaxPlayers int `json:"maxPlayers"`
}

type updateOptionsRequest struct {
	RoomCode string          `json:"roomCode"`
	Options  json.RawMessage `json:"options"`
}

type kickPlayerRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type roomOnlyRequest struct {
	RoomCode string `json:"roomCode"`
}

type joinRoomRequest struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
}

type rejoinRoomRequest struct {
	RoomCode    string `json:"roomCode"`
	PlayerToken string `json:"playerToken"`
}

type answerRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Choice   string `json:"choice"`
}

type pickCategoryRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	CategoryID string `json:"categoryId"`
}
