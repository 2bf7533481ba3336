package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-officiating/middleware"
	"github.com/Dosada05/tournament-officiating/presence"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *presence.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler accepts connections from the given origins; an empty list allows any.
func NewWebSocketHandler(hub *presence.Hub, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Native judge devices send no Origin.
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWs обрабатывает GET /ws/tournaments/{tournamentID}. The judge identity comes from
// the session token, never from the frames the device sends.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	claims, err := middleware.GetJudgeFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	h.hub.Serve(conn, presence.RoomName(tournamentID), claims.Identity())
}
