package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/swaggest/swgui/v5emb"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
)

// NewRouter mounts the REST, WebSocket, health and docs routes.
func NewRouter(service *app.RoomService, log *zap.Logger, checks map[string]Checker) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	rooms := NewRoomHandler(service, log)
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Quiz Room API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(log, checks))
	r.Get("/ws", ws.ServeWS)

	r.Post("/create-quiz", rooms.CreateRoom)
	r.Post("/submit-score", rooms.SubmitScore)
	r.Post("/submit-final-score", rooms.SubmitFinal)
	r.Get("/leaderboard/{roomCode}", rooms.Leaderboard)
	r.Get("/room-status/{roomCode}", rooms.RoomStatus)
	r.Route("/rooms/{roomCode}", func(r chi.Router) {
		r.Post("/start", rooms.StartRoom)
		r.Delete("/", rooms.CloseRoom)
	})
	return r
}

func requestLogger(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Int64("duration_ms", time.Since(start).Milliseconds()),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
