// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/engine"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
)

// GameMessage represents the structure for incoming WebSocket messages
// during the game phase. Cards travel as their one-byte wire codes.
type GameMessage struct {
	Type string `json:"type"`

	// Cards holds the wire-encoded cards for a play action.
	Cards []uint8 `json:"cards,omitempty"`

	// Suit names the nominated suit when the play contains an Ace.
	Suit string `json:"suit,omitempty"`

	// Reason distinguishes a cannot-play draw from an attack draw.
	Reason string `json:"reason,omitempty"`

	// Payload provides a generic container for any additional data.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// wsTransport adapts a websocket connection to the monitor's transport
// handle.
type wsTransport struct {
	c *websocket.Conn
}

func (t wsTransport) CloseNow() error {
	return t.c.CloseNow()
}

// GameWSHandler upgrades the HTTP connection to WebSocket for a
// specific game instance. It validates the session token, verifies the
// seat belongs to the game, registers the transport with the
// connection monitor, and then starts the read loop to handle incoming
// game messages while a writer goroutine forwards engine events.
func GameWSHandler(logger *logrus.Logger, s *APIServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract game ID from URL path: /game/ws/{game_id}
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing game_id in path (/game/ws/{game_id})", http.StatusBadRequest)
			return
		}
		gameID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid game_id format", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			logger.Warnf("Client for game %s connected with invalid subprotocol: %s", gameID, c.Subprotocol())
			c.Close(websocket.StatusCode(BadSubprotocolError), "Client must use the 'game' subprotocol.")
			return
		}

		e, ok := s.Supervisor.GetGame(gameID)
		if !ok {
			logger.Warnf("WebSocket connect for unknown game %s", gameID)
			c.Close(websocket.StatusCode(UnknownGameError), "No such game.")
			return
		}

		// Validate the session token from the query string.
		token := r.URL.Query().Get("token")
		sess, err := s.Sessions.Validate(token)
		if err != nil {
			logger.Warnf("Session validation failed for game %s: %v", gameID, err)
			c.Close(websocket.StatusCode(InvalidSessionError), "Session token invalid or expired.")
			return
		}
		if sess.GameID != gameID {
			logger.Warnf("Seat %s presented a token for game %s on game %s", sess.SeatID, sess.GameID, gameID)
			c.Close(websocket.StatusCode(WrongGameError), "Token belongs to a different game.")
			return
		}
		logger.Infof("Seat %s authenticated for game %s from %s", sess.SeatID, gameID, r.RemoteAddr)

		// Register the transport with the monitor. A returning seat
		// rebinds and cancels its pending abandonment.
		transport := wsTransport{c}
		if _, monitored := s.Monitor.Status(token); monitored {
			if err := s.Monitor.HandleReconnect(token, transport); err != nil {
				c.Close(websocket.StatusCode(InvalidSessionError), "Reconnect window has expired.")
				return
			}
			logger.Infof("Seat %s reconnected to game %s", sess.SeatID, gameID)
		} else {
			s.Monitor.MonitorPlayer(token, gameID, sess.SeatID, transport)
		}

		// Forward engine events to this client until the socket dies.
		subID, events, err := e.Subscribe()
		if err != nil {
			c.Close(websocket.StatusGoingAway, "Game has ended.")
			return
		}
		defer e.Unsubscribe(subID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writeGameEvents(ctx, c, events, logger)

		// Send the caller their current view before anything else.
		if view, err := e.View(sess.SeatID); err == nil {
			sendWsMessage(ctx, c, map[string]interface{}{"type": "state", "state": view})
		}

		readGameMessages(ctx, c, e, sess.SeatID, token, s, logger)

		logger.Infof("Seat %s WebSocket read loop exited for game %s.", sess.SeatID, gameID)
		s.Monitor.HandleDisconnect(token)
	}
}

// writeGameEvents pumps engine broadcasts to one client. Exits when the
// subscription channel closes or the context is cancelled.
func writeGameEvents(ctx context.Context, c *websocket.Conn, events <-chan engine.Event, logger *logrus.Logger) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msgBytes, err := json.Marshal(ev)
			if err != nil {
				logger.Errorf("Failed to marshal event %s: %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, msgBytes)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readGameMessages continuously reads messages from a client's
// WebSocket connection, unmarshals them, and routes them to the game
// actor. It operates within the connection's context and exits upon
// error or cancellation.
func readGameMessages(ctx context.Context, c *websocket.Conn, e *engine.Engine, seatID uuid.UUID, token string, s *APIServer, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for seat %s in game %s.", seatID, e.ID())
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for seat %s in game %s.", seatID, e.ID())
			} else {
				logger.Warnf("Error reading from WebSocket for seat %s in game %s: %v (Status: %d)", seatID, e.ID(), err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from seat %s. Ignoring.", msgType, seatID)
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON received from seat %s in game %s: %v. Data: %s", seatID, e.ID(), err, string(data))
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received action '%s' from seat %s in game %s.", msg.Type, seatID, e.ID())

		action := models.GameAction{ActionType: msg.Type, Payload: msg.Payload}

		switch msg.Type {
		case "play":
			handlePlay(ctx, c, e, seatID, msg)

		case "draw":
			reason := game.DrawCannotPlay
			if msg.Reason == string(game.DrawAttack) {
				reason = game.DrawAttack
			}
			drawn, err := e.DrawCards(seatID, reason)
			if err != nil {
				sendWsGameError(ctx, c, err)
				continue
			}
			codes := make([]uint8, len(drawn))
			for i, dc := range drawn {
				codes[i] = dc.Encode()
			}
			sendWsMessage(ctx, c, map[string]interface{}{"type": "drawn", "cards": codes})

		case "state":
			view, err := e.View(seatID)
			if err != nil {
				sendWsGameError(ctx, c, err)
				continue
			}
			sendWsMessage(ctx, c, map[string]interface{}{"type": "state", "state": view})

		case "heartbeat", "ping":
			if err := s.Monitor.Heartbeat(token); err != nil {
				logger.Warnf("Heartbeat for unmonitored seat %s: %v", seatID, err)
			}
			// Keep the session itself alive too, or a long game played
			// entirely over the socket would idle out and block a later
			// reconnect.
			s.Sessions.Touch(token)
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})

		default:
			logger.Warnf("Unknown action type '%s' from seat %s in game %s.", action.ActionType, seatID, e.ID())
			sendWsError(ctx, c, fmt.Sprintf("Unknown action type: %s", msg.Type))
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handlePlay decodes the wire cards and nominated suit, then submits
// the play to the actor.
func handlePlay(ctx context.Context, c *websocket.Conn, e *engine.Engine, seatID uuid.UUID, msg GameMessage) {
	cards := make([]card.Card, 0, len(msg.Cards))
	for _, code := range msg.Cards {
		dc, err := card.Decode(code)
		if err != nil {
			sendWsError(ctx, c, fmt.Sprintf("Bad card byte 0x%02X: %v", code, err))
			return
		}
		cards = append(cards, dc)
	}
	var chosenSuit *card.Suit
	if msg.Suit != "" {
		suit, err := card.ParseSuit(msg.Suit)
		if err != nil {
			sendWsError(ctx, c, fmt.Sprintf("Bad suit %q", msg.Suit))
			return
		}
		chosenSuit = &suit
	}
	if err := e.PlayCards(seatID, cards, chosenSuit); err != nil {
		sendWsGameError(ctx, c, err)
	}
}

// sendWsMessage marshals a message and sends it to the WebSocket client.
// Includes logging for errors and uses a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = c.Write(writeCtx, websocket.MessageText, msgBytes)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Error writing WebSocket message: %v (Status: %d)", err, status)
		} else if strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Timeout writing WebSocket message: %v", err)
		}
		// Let the read loop handle connection closure detection.
	}
}

// sendWsError sends a plain error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}

// sendWsGameError sends a structured rejection, preserving the kind so
// clients can react per error type.
func sendWsGameError(ctx context.Context, c *websocket.Conn, err error) {
	if ge, ok := err.(*game.Error); ok {
		sendWsMessage(ctx, c, map[string]interface{}{
			"type":    "error",
			"kind":    ge.Kind,
			"message": ge.Message,
			"details": ge.Details,
		})
		return
	}
	sendWsError(ctx, c, err.Error())
}
