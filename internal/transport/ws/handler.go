package ws

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"quizer-server/internal/domain"
	"quizer-server/internal/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websockets, assigns each connection an
// opaque id, and dispatches inbound envelopes to the session engine.
type Handler struct {
	engine   *game.Engine
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(engine *game.Engine, hub *Hub) *Handler {
	return &Handler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	QuizID   string      `json:"quizId"`
	QuizData domain.Quiz `json:"quizData"`
}

type joinRoomPayload struct {
	RoomCode     string `json:"roomCode"`
	PlayerName   string `json:"playerName"`
	PlayerAvatar string `json:"playerAvatar"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type submitAnswerPayload struct {
	RoomCode     string  `json:"roomCode"`
	Answer       int     `json:"answer"`
	ResponseTime float64 `json:"responseTime"`
}

type playerPointsPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
}

type unlockBuzzersPayload struct {
	RoomCode string `json:"roomCode"`
	// PlayerIDs is either the string "all" or an array of connection ids.
	PlayerIDs json.RawMessage `json:"playerIds"`
}

// decodeStrict rejects unknown fields so malformed or mistyped payloads
// surface as errors instead of being half-applied.
func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ServeWS runs the read loop for one connection until it drops.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	h.hub.add(connID, conn)
	defer h.hub.remove(connID)
	defer h.engine.Disconnect(connID)

	log.Printf("client connected: %s", connID)
	defer log.Printf("client disconnected: %s", connID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if err := h.dispatch(connID, inbound); err != nil {
			h.hub.Send(connID, game.Envelope{
				Type:    game.MsgError,
				Payload: game.ErrorPayload{Message: err.Error()},
			})
		}
	}
}

func (h *Handler) dispatch(connID string, inbound inboundMessage) error {
	switch inbound.Type {
	case "create-room":
		var p createRoomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.CreateRoom(connID, p.QuizID, p.QuizData)

	case "join-room":
		var p joinRoomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.JoinRoom(connID, p.RoomCode, p.PlayerName, p.PlayerAvatar)

	case "join-leaderboard":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.JoinLeaderboard(connID, p.RoomCode)

	case "start-game":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.StartGame(connID, p.RoomCode)

	case "submit-answer":
		var p submitAnswerPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.SubmitAnswer(connID, p.RoomCode, p.Answer, p.ResponseTime)

	case "buzzer-press":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.PressBuzzer(connID, p.RoomCode)

	case "award-buzzer-points":
		var p playerPointsPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.AwardBuzzerPoints(connID, p.RoomCode, p.PlayerID, p.Points)

	case "unlock-buzzers":
		var p unlockBuzzersPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		all, ids, err := parsePlayerIDs(p.PlayerIDs)
		if err != nil {
			return errInvalidPayload
		}
		return h.engine.UnlockBuzzers(connID, p.RoomCode, all, ids)

	case "adjust-player-points":
		var p playerPointsPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.AdjustPlayerScore(connID, p.RoomCode, p.PlayerID, p.Points)

	case "show-results":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.ShowResults(connID, p.RoomCode)

	case "next-question":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.NextQuestion(connID, p.RoomCode)

	case "end-game":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.EndGame(connID, p.RoomCode)

	case "restart-game":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.RestartGame(connID, p.RoomCode)

	case "leave-room":
		var p roomPayload
		if err := decodeStrict(inbound.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return h.engine.LeaveRoom(connID, p.RoomCode)

	default:
		return errUnsupportedType
	}
}

// parsePlayerIDs accepts "all" or an array of connection ids.
func parsePlayerIDs(raw json.RawMessage) (all bool, ids []string, err error) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s != "all" {
			return false, nil, errInvalidPayload
		}
		return true, nil, nil
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return false, nil, err
	}
	return false, ids, nil
}
