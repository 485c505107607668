package http

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"quiz-room-service/internal/domain"
)

type roomCodePath struct {
	RoomCode string `path:"roomCode"`
}

type leaderboardQuery struct {
	RoomCode string `path:"roomCode"`
	K        int    `query:"k" description:"Number of entries, defaults to the configured top K."`
}

type wsQuery struct {
	RoomCode string `query:"roomCode" required:"true"`
	PlayerID string `query:"playerId" description:"Generated when empty."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Quiz Room API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Scheduled quiz rooms with a live leaderboard.")

	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	createQuiz, _ := r.NewOperationContext(http.MethodPost, "/create-quiz")
	createQuiz.SetSummary("Create a quiz room")
	createQuiz.AddReqStructure(CreateRoomRequest{})
	createQuiz.AddRespStructure(CreateRoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	createQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createQuiz)

	startRoom, _ := r.NewOperationContext(http.MethodPost, "/rooms/{roomCode}/start")
	startRoom.SetSummary("Start a room")
	startRoom.SetDescription("Moves a scheduled room to running. Only the first call succeeds.")
	startRoom.AddReqStructure(roomCodePath{})
	startRoom.AddRespStructure(MessageResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	startRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	startRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(startRoom)

	closeRoom, _ := r.NewOperationContext(http.MethodDelete, "/rooms/{roomCode}")
	closeRoom.SetSummary("Close a room")
	closeRoom.AddReqStructure(roomCodePath{})
	closeRoom.AddRespStructure(MessageResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	closeRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(closeRoom)

	submitScore, _ := r.NewOperationContext(http.MethodPost, "/submit-score")
	submitScore.SetSummary("Submit an answer")
	submitScore.AddReqStructure(SubmitScoreRequest{})
	submitScore.AddRespStructure(SubmitScoreResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	submitScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	submitScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	submitScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(submitScore)

	submitFinal, _ := r.NewOperationContext(http.MethodPost, "/submit-final-score")
	submitFinal.SetSummary("Submit the final score of a player")
	submitFinal.AddReqStructure(SubmitFinalRequest{})
	submitFinal.AddRespStructure(SubmitFinalResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	submitFinal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	submitFinal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	submitFinal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(submitFinal)

	getLeaderboard, _ := r.NewOperationContext(http.MethodGet, "/leaderboard/{roomCode}")
	getLeaderboard.SetSummary("Room leaderboard")
	getLeaderboard.AddReqStructure(leaderboardQuery{})
	getLeaderboard.AddRespStructure(LeaderboardResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getLeaderboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getLeaderboard)

	getStatus, _ := r.NewOperationContext(http.MethodGet, "/room-status/{roomCode}")
	getStatus.SetSummary("Room status")
	getStatus.AddReqStructure(roomCodePath{})
	getStatus.AddRespStructure(domain.RoomStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	getStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getStatus)

	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Room event stream")
	getWS.SetDescription("Upgrades to a WebSocket carrying roomStatus, leaderboardUpdate, tick and ended events. " +
		"Clients send start, answer and final messages.")
	getWS.AddReqStructure(wsQuery{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWS.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
