// internal/handlers/api_server_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgillies/switchgame/internal/ai"
	"github.com/rgillies/switchgame/internal/engine"
	"github.com/rgillies/switchgame/internal/session"
)

func newTestAPIServer(t *testing.T) *APIServer {
	t.Helper()
	session.InitKeys()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	sup := engine.NewGameSupervisor(ai.New(), logger, engine.Config{
		ThinkDelay:  5 * time.Millisecond,
		LingerDelay: time.Hour,
	}, nil, nil)
	t.Cleanup(sup.Shutdown)

	sessions := session.NewManager(logger)
	t.Cleanup(sessions.Stop)

	monitor := session.NewMonitor(logger, time.Minute, nil, nil)
	t.Cleanup(monitor.Stop)

	return NewAPIServer(logger, sup, sessions, monitor)
}

type createdGame struct {
	GameID uuid.UUID      `json:"game_id"`
	Seats  []seatResponse `json:"seats"`
}

func createGame(t *testing.T, s *APIServer, body string) createdGame {
	t.Helper()
	req := httptest.NewRequest("POST", "/game/create", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.CreateGameHandler()(w, req)
	require.Equal(t, http.StatusCreated, w.Code, "body=%s", w.Body.String())

	var out createdGame
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateGameMintsTokensForHumans(t *testing.T) {
	s := newTestAPIServer(t)

	game := createGame(t, s, `{"seats":[
		{"name":"alice","type":"human"},
		{"name":"bot","type":"ai","difficulty":"hard"}
	]}`)

	require.Len(t, game.Seats, 2)
	assert.NotEmpty(t, game.Seats[0].Token, "human seats get a session token")
	assert.Empty(t, game.Seats[1].Token, "computer seats do not")

	_, ok := s.Supervisor.GetGame(game.GameID)
	assert.True(t, ok)
}

func TestCreateGameRejectsBadSeatCount(t *testing.T) {
	s := newTestAPIServer(t)

	req := httptest.NewRequest("POST", "/game/create", bytes.NewBufferString(`{"seats":[{"name":"solo","type":"human"}]}`))
	w := httptest.NewRecorder()
	s.CreateGameHandler()(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinGameAddsSeat(t *testing.T) {
	s := newTestAPIServer(t)
	game := createGame(t, s, `{"seats":[{"name":"alice","type":"human"},{"name":"bob","type":"human"}]}`)

	body, _ := json.Marshal(joinGameRequest{GameID: game.GameID, Name: "carol"})
	req := httptest.NewRequest("POST", "/game/join", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	s.JoinGameHandler()(w, req)
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	var seat seatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seat))
	assert.NotEmpty(t, seat.Token)
}

func TestJoinUnknownGame(t *testing.T) {
	s := newTestAPIServer(t)

	body, _ := json.Marshal(joinGameRequest{GameID: uuid.New(), Name: "carol"})
	req := httptest.NewRequest("POST", "/game/join", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	s.JoinGameHandler()(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartAndStateFlow(t *testing.T) {
	s := newTestAPIServer(t)
	game := createGame(t, s, `{"seats":[{"name":"alice","type":"human"},{"name":"bob","type":"human"}]}`)
	token := game.Seats[0].Token

	req := httptest.NewRequest("POST", "/game/start", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.StartGameHandler()(w, req)
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	req2 := httptest.NewRequest("GET", "/game/state", nil)
	req2.Header.Set("Cookie", "session_token="+token)
	w2 := httptest.NewRecorder()
	s.GetStateHandler()(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var view engine.StateView
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &view))
	assert.Equal(t, game.GameID, view.GameID)
	assert.Len(t, view.Hand, 7, "the caller sees their own hand")
}

func TestStateRequiresToken(t *testing.T) {
	s := newTestAPIServer(t)

	req := httptest.NewRequest("GET", "/game/state", nil)
	w := httptest.NewRecorder()
	s.GetStateHandler()(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLeaveGameDestroysSession(t *testing.T) {
	s := newTestAPIServer(t)
	game := createGame(t, s, `{"seats":[{"name":"alice","type":"human"},{"name":"bob","type":"human"},{"name":"carol","type":"human"}]}`)
	token := game.Seats[2].Token

	req := httptest.NewRequest("POST", "/game/leave", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.LeaveGameHandler()(w, req)
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	// The token no longer validates.
	req2 := httptest.NewRequest("GET", "/game/state", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	w2 := httptest.NewRecorder()
	s.GetStateHandler()(w2, req2)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestListGames(t *testing.T) {
	s := newTestAPIServer(t)
	game := createGame(t, s, `{"seats":[{"name":"a","type":"human"},{"name":"b","type":"human"}]}`)

	req := httptest.NewRequest("GET", "/game/list", nil)
	w := httptest.NewRecorder()
	s.ListGamesHandler()(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Games []uuid.UUID `json:"games"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Contains(t, out.Games, game.GameID)
}
