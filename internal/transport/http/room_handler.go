package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// CreateRoomRequest is the body of POST /create-quiz.
type CreateRoomRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
}

type CreateRoomResponse struct {
	RoomCode  string    `json:"roomCode"`
	Message   string    `json:"message"`
	StartTime time.Time `json:"startTime"`
}

// SubmitScoreRequest is the body of POST /submit-score.
type SubmitScoreRequest struct {
	RoomCode       string `json:"roomCode"`
	PlayerID       string `json:"playerId"`
	QuestionIndex  int    `json:"questionIndex"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	TimeTaken      int64  `json:"timeTaken"`
}

type SubmitScoreResponse struct {
	Message        string               `json:"message"`
	IsCorrect      bool                 `json:"isCorrect"`
	QuestionPoints int                  `json:"questionPoints"`
	TotalPoints    int                  `json:"totalPoints"`
	Leaderboard    []domain.PlayerEntry `json:"leaderboard"`
}

// SubmitFinalRequest is the body of POST /submit-final-score.
type SubmitFinalRequest struct {
	RoomCode     string `json:"roomCode"`
	PlayerID     string `json:"playerId"`
	CorrectCount int    `json:"correctCount"`
	TimeTaken    int64  `json:"timeTaken"`
}

type SubmitFinalResponse struct {
	Message     string               `json:"message"`
	Leaderboard []domain.PlayerEntry `json:"leaderboard"`
}

type LeaderboardResponse struct {
	RoomCode    string               `json:"roomCode"`
	Leaderboard []domain.PlayerEntry `json:"leaderboard"`
	StartTime   time.Time            `json:"startTime"`
	IsStarted   bool                 `json:"isStarted"`
	Phase       domain.Phase         `json:"phase"`
}

type MessageResponse struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

// RoomHandler serves the REST surface of the room use cases.
type RoomHandler struct {
	service *app.RoomService
	log     *zap.Logger
}

func NewRoomHandler(service *app.RoomService, log *zap.Logger) *RoomHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomHandler{service: service, log: log}
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	code, err := h.service.CreateRoom(r.Context(), domain.RoomSpec{
		Title:          req.Title,
		Description:    req.Description,
		ScheduledStart: req.StartTime,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateRoomResponse{
		RoomCode:  code,
		Message:   "Quiz created successfully",
		StartTime: req.StartTime,
	})
}

func (h *RoomHandler) StartRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "roomCode")
	if err := h.service.StartRoom(r.Context(), code); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{RoomCode: app.NormalizeRoomCode(code), Message: "Quiz started"})
}

func (h *RoomHandler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "roomCode")
	if err := h.service.CloseRoom(r.Context(), code); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{RoomCode: app.NormalizeRoomCode(code), Message: "Quiz closed"})
}

func (h *RoomHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.SubmitAnswer(r.Context(), req.RoomCode, domain.AnswerSubmission{
		PlayerID:       req.PlayerID,
		QuestionIndex:  req.QuestionIndex,
		SelectedAnswer: req.SelectedAnswer,
		CorrectAnswer:  req.CorrectAnswer,
		TimeTakenMs:    req.TimeTaken,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitScoreResponse{
		Message:        "Question score submitted successfully",
		IsCorrect:      res.IsCorrect,
		QuestionPoints: res.QuestionPoints,
		TotalPoints:    res.TotalPoints,
		Leaderboard:    res.Leaderboard.Entries,
	})
}

func (h *RoomHandler) SubmitFinal(w http.ResponseWriter, r *http.Request) {
	var req SubmitFinalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	lb, err := h.service.SubmitFinal(r.Context(), req.RoomCode, domain.FinalSubmission{
		PlayerID:     req.PlayerID,
		CorrectCount: req.CorrectCount,
		TimeTakenMs:  req.TimeTaken,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitFinalResponse{
		Message:     "Final score submitted successfully",
		Leaderboard: lb.Entries,
	})
}

func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "roomCode")
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: k must be a non-negative integer", domain.ErrInvalidInput))
			return
		}
		k = n
	}

	lb, err := h.service.Leaderboard(r.Context(), code, k)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status, err := h.service.RoomStatus(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		RoomCode:    lb.RoomCode,
		Leaderboard: lb.Entries,
		StartTime:   status.ScheduledStart,
		IsStarted:   status.IsStarted,
		Phase:       status.Phase,
	})
}

func (h *RoomHandler) RoomStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.RoomStatus(r.Context(), chi.URLParam(r, "roomCode"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *RoomHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, err)
}
