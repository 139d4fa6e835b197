package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/engine"
	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// Handler routes decoded client frames into the engine and translates the
// engine's acks back onto the wire.
type Handler struct {
	engine *engine.Engine
	cm     *ConnectionManager
}

// NewHandler wires the inbound side. The connection manager's Handler field
// is set here so upgrades arriving afterwards dispatch into the engine.
func NewHandler(eng *engine.Engine, cm *ConnectionManager) *Handler {
	h := &Handler{engine: eng, cm: cm}
	cm.Handler = h
	return h
}

// HandleWS is the websocket upgrade endpoint.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := h.cm.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// RegisterRoutes attaches the gateway's endpoints to a mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWS)
}

// HandleDisconnect implements InboundHandler.
func (h *Handler) HandleDisconnect(connID string) {
	h.engine.Disconnect(connID)
}

// HandleMessage implements InboundHandler: decode, dispatch, ack.
func (h *Handler) HandleMessage(connID string, msg ClientMessage) Ack {
	ack := h.dispatch(connID, msg)
	return Ack{OK: ack.OK, Reason: ack.Reason, Data: ack.Data}
}

func (h *Handler) dispatch(connID string, msg ClientMessage) engine.Ack {
	switch msg.Type {
	case MsgCreateRoom:
		var req createRoomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonCreateRoomFailed}
		}
		return h.engine.CreateRoom(connID, req.MaxPlayers)

	case MsgUpdateOptions:
		var req updateOptionsRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonRoomNotFound}
		}
		var update game.OptionsUpdate
		if len(req.Options) > 0 {
			if err := json.Unmarshal(req.Options, &update); err != nil {
				return engine.Ack{OK: false, Reason: engine.ReasonOptionsLocked}
			}
		}
		return h.engine.UpdateOptions(connID, req.RoomCode, update)

	case MsgKickPlayer:
		var req kickPlayerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonPlayerNotFound}
		}
		return h.engine.KickPlayer(connID, req.RoomCode, req.PlayerID)

	case MsgStartGame:
		var req roomOnlyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonRoomNotFound}
		}
		return h.engine.StartGame(connID, req.RoomCode)

	case MsgEndGame:
		var req roomOnlyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonRoomNotFound}
		}
		return h.engine.EndGame(connID, req.RoomCode)

	case MsgJoinRoom:
		var req joinRoomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonNameRequired}
		}
		return h.engine.JoinRoom(connID, req.RoomCode, req.DisplayName)

	case MsgRejoinRoom:
		var req rejoinRoomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonTokenInvalid}
		}
		return h.engine.RejoinRoom(connID, req.RoomCode, req.PlayerToken)

	case MsgR1Answer:
		var req answerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonInvalidChoice}
		}
		return h.engine.SubmitRound1Answer(connID, req.RoomCode, req.PlayerID, req.Choice)

	case MsgR1PickCategory:
		var req pickCategoryRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonInvalidPick}
		}
		return h.engine.PickCategory(connID, req.RoomCode, req.PlayerID, req.CategoryID)

	case MsgFinalAnswer:
		var req answerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return engine.Ack{OK: false, Reason: engine.ReasonInvalidChoice}
		}
		return h.engine.SubmitFinalAnswer(connID, req.RoomCode, req.PlayerID, req.Choice)

	default:
		log.Debug().Str("type", msg.Type).Str("conn", connID).Msg("unknown client message type")
		return engine.Ack{OK: false, Reason: "UNKNOWN_MESSAGE_TYPE"}
	}
}
