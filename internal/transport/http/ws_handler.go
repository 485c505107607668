package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

type WSHandler struct {
	service  *app.RoomService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
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

type answerPayload struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	TimeTaken      int64  `json:"timeTaken"`
}

type finalPayload struct {
	CorrectCount int   `json:"correctCount"`
	TimeTaken    int64 `json:"timeTaken"`
}

type sessionPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type answerResult struct {
	QuestionIndex  int  `json:"questionIndex"`
	IsCorrect      bool `json:"isCorrect"`
	QuestionPoints int  `json:"questionPoints"`
	TotalPoints    int  `json:"totalPoints"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room use cases.
// Room events are forwarded as they are published; inbound messages are start, answer
// and final.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomCode := app.NormalizeRoomCode(r.URL.Query().Get("roomCode"))
	playerID := r.URL.Query().Get("playerId")
	if roomCode == "" {
		http.Error(w, "missing roomCode", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), roomCode)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	log := h.log.With(zap.String("room", roomCode), zap.String("player", playerID))

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				_ = conn.Close()
				// keep draining so senders never block on a dead connection
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					// room closed; unblock the reader
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{RoomCode: roomCode, PlayerID: playerID}}
	if _, err := h.service.JoinRoom(r.Context(), roomCode); err != nil {
		send <- errorMessage(err)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(r, roomCode, playerID, inbound) {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, roomCode, playerID string, inbound inboundMessage) []outboundMessage[any] {
	ctx := r.Context()
	switch inbound.Type {
	case "start":
		if err := h.service.StartRoom(ctx, roomCode); err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return nil
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}}
		}
		res, err := h.service.SubmitAnswer(ctx, roomCode, domain.AnswerSubmission{
			PlayerID:       playerID,
			QuestionIndex:  payload.QuestionIndex,
			SelectedAnswer: payload.SelectedAnswer,
			CorrectAnswer:  payload.CorrectAnswer,
			TimeTakenMs:    payload.TimeTaken,
		})
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "answerResult", Payload: answerResult{
			QuestionIndex:  payload.QuestionIndex,
			IsCorrect:      res.IsCorrect,
			QuestionPoints: res.QuestionPoints,
			TotalPoints:    res.TotalPoints,
		}}}
	case "final":
		var payload finalPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid final payload"}}}
		}
		if _, err := h.service.SubmitFinal(ctx, roomCode, domain.FinalSubmission{
			PlayerID:     playerID,
			CorrectCount: payload.CorrectCount,
			TimeTakenMs:  payload.TimeTaken,
		}); err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return nil
	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}}
	}
}

// errorMessage reports state rejections as "rejected" and everything else as "error".
func errorMessage(err error) outboundMessage[any] {
	typ := "error"
	if errors.Is(err, domain.ErrRejected) {
		typ = "rejected"
	}
	return outboundMessage[any]{Type: typ, Payload: errorPayload{Message: err.Error()}}
}
