package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/models"
	"memory-map-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler streams change events to open maps
type WebSocketHandler struct {
	hub         *services.EventsHub
	userService *services.UserService
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. allowedOrigin "*"
// accepts any origin.
func NewWebSocketHandler(hub *services.EventsHub, userService *services.UserService, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a WebSocket handshake
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.TokenFromRequest(r)
	}

	userID, err := h.userService.Authenticate(r.Context(), token)
	if err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			respondError(w, models.ErrUnauthenticated.Error(), http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("Failed to authenticate WebSocket connection")
		respondError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.Event
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.send(userID, conn, services.Event{Type: services.EventError, Message: "Invalid message format"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.send(userID, conn, services.Event{Type: services.EventPong})
		default:
			h.send(userID, conn, services.Event{Type: services.EventError, Message: "Unknown message type"})
		}
	}
}

func (h *WebSocketHandler) send(userID string, conn *websocket.Conn, event services.Event) {
	if err := h.hub.SendTo(userID, conn, event); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send WebSocket message")
	}
}
