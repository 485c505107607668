package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/infra/memory"
)

type testEnv struct {
	server  *httptest.Server
	service *app.RoomService
	results *memory.ResultStore
}

func newTestEnv(t *testing.T, cfg app.RoomConfig, checks map[string]Checker) *testEnv {
	t.Helper()
	results := memory.NewResultStore()
	service := app.NewRoomService(memory.NewRoomStore(), results, app.NewBroadcaster(64), cfg, nil)
	server := httptest.NewServer(NewRouter(service, nil, checks))
	t.Cleanup(func() {
		server.Close()
		service.Shutdown(context.Background())
	})
	return &testEnv{server: server, service: service, results: results}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (e *testEnv) createRoom(t *testing.T, start time.Time) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/create-quiz", CreateRoomRequest{
		Title:       "Capitals",
		Description: "Europe",
		StartTime:   start,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var created CreateRoomResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.Len(t, created.RoomCode, 6)
	return created.RoomCode
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}
