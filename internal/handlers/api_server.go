// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/engine"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
	"github.com/rgillies/switchgame/internal/session"
)

// APIServer bundles the singletons the HTTP and WebSocket handlers
// need: the game registry and the two connection-layer actors.
type APIServer struct {
	Logger     *logrus.Logger
	Supervisor *engine.GameSupervisor
	Sessions   *session.Manager
	Monitor    *session.Monitor
}

// NewAPIServer wires the handler dependencies together.
func NewAPIServer(logger *logrus.Logger, sup *engine.GameSupervisor, sessions *session.Manager, monitor *session.Monitor) *APIServer {
	return &APIServer{
		Logger:     logger,
		Supervisor: sup,
		Sessions:   sessions,
		Monitor:    monitor,
	}
}

// seatRequest describes one requested seat in a create call.
type seatRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`       // "human" or "ai"
	Difficulty string `json:"difficulty"` // ai only
}

// createGameRequest is the POST body for /game/create.
type createGameRequest struct {
	Seats []seatRequest `json:"seats"`
}

// seatResponse reports one created seat; humans also receive their
// reconnection token.
type seatResponse struct {
	SeatID uuid.UUID `json:"seat_id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Token  string    `json:"token,omitempty"`
}

// CreateGameHandler creates a game with the requested seats and mints
// a session token per human seat.
func (s *APIServer) CreateGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		seats := make([]models.Seat, 0, len(req.Seats))
		for _, sr := range req.Seats {
			seat := models.Seat{ID: uuid.New(), Name: sr.Name, Type: models.TypeHuman}
			if sr.Type == "ai" {
				seat.Type = models.TypeAI
				seat.Difficulty = models.Difficulty(sr.Difficulty)
				if seat.Difficulty == "" {
					seat.Difficulty = models.DifficultyNormal
				}
			}
			seats = append(seats, seat)
		}

		gameID := uuid.New()
		if _, err := s.Supervisor.StartGame(gameID, seats); err != nil {
			writeGameError(w, err)
			return
		}

		resp := struct {
			GameID uuid.UUID      `json:"game_id"`
			Seats  []seatResponse `json:"seats"`
		}{GameID: gameID}
		for _, seat := range seats {
			sr := seatResponse{SeatID: seat.ID, Name: seat.Name, Type: string(seat.Type)}
			if seat.Type == models.TypeHuman {
				token, err := s.Sessions.Create(gameID, seat.ID, seat.Name)
				if err != nil {
					s.Logger.WithError(err).Error("session mint failed")
					http.Error(w, "Failed to create session", http.StatusInternalServerError)
					return
				}
				sr.Token = token
			}
			resp.Seats = append(resp.Seats, sr)
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// joinGameRequest is the POST body for /game/join.
type joinGameRequest struct {
	GameID uuid.UUID `json:"game_id"`
	Name   string    `json:"name"`
}

// JoinGameHandler seats a new human player in a waiting game.
func (s *APIServer) JoinGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req joinGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		e, ok := s.Supervisor.GetGame(req.GameID)
		if !ok {
			writeGameError(w, game.NewError(game.KindGameNotFound, "no such game", nil))
			return
		}
		seat := models.Seat{ID: uuid.New(), Name: req.Name, Type: models.TypeHuman}
		if err := e.AddPlayer(seat); err != nil {
			writeGameError(w, err)
			return
		}
		token, err := s.Sessions.Create(req.GameID, seat.ID, req.Name)
		if err != nil {
			s.Logger.WithError(err).Error("session mint failed")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, seatResponse{
			SeatID: seat.ID,
			Name:   req.Name,
			Type:   string(models.TypeHuman),
			Token:  token,
		})
	}
}

// StartGameHandler begins play in a waiting game. The caller must hold
// a seat in it.
func (s *APIServer) StartGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, err := s.validateRequest(r)
		if err != nil {
			writeGameError(w, err)
			return
		}
		e, ok := s.Supervisor.GetGame(sess.GameID)
		if !ok {
			writeGameError(w, game.NewError(game.KindGameNotFound, "no such game", nil))
			return
		}
		if err := e.Start(); err != nil {
			writeGameError(w, err)
			return
		}
		view, err := e.View(sess.SeatID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ListGamesHandler enumerates running game ids.
func (s *APIServer) ListGamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"games": s.Supervisor.ListGames(),
		})
	}
}

// GetStateHandler returns the caller's redacted view of their game.
func (s *APIServer) GetStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.validateRequest(r)
		if err != nil {
			writeGameError(w, err)
			return
		}
		e, ok := s.Supervisor.GetGame(sess.GameID)
		if !ok {
			writeGameError(w, game.NewError(game.KindGameNotFound, "no such game", nil))
			return
		}
		view, err := e.View(sess.SeatID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// LeaveGameHandler removes the caller's seat and destroys the session.
func (s *APIServer) LeaveGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, err := s.validateRequest(r)
		if err != nil {
			writeGameError(w, err)
			return
		}
		if e, ok := s.Supervisor.GetGame(sess.GameID); ok {
			if err := e.RemovePlayer(sess.SeatID); err != nil {
				writeGameError(w, err)
				return
			}
		}
		s.Monitor.Unmonitor(sess.Token)
		s.Sessions.Destroy(sess.Token)
		writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
	}
}

// validateRequest resolves the request's session token, taken from the
// Authorization bearer header, the session cookie, or a token query
// parameter.
func (s *APIServer) validateRequest(r *http.Request) (session.Session, error) {
	token := bearerToken(r)
	if token == "" {
		token = extractCookieToken(r.Header.Get("Cookie"), "session_token")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return session.Session{}, game.NewError(game.KindInvalidSession, "missing session token", nil)
	}
	return s.Sessions.Validate(token)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeGameError maps a structured game error onto an HTTP status.
func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch game.KindOf(err) {
	case game.KindGameNotFound, game.KindPlayerNotFound:
		status = http.StatusNotFound
	case game.KindInvalidSession, game.KindSessionExpired:
		status = http.StatusUnauthorized
	case game.KindCannotJoin, game.KindAlreadyStarted, game.KindInvalidStatus:
		status = http.StatusConflict
	case "":
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if ge, ok := err.(*game.Error); ok {
		_ = json.NewEncoder(w).Encode(ge)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
}
