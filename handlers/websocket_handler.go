package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Dosada05/family-ranking/live"
	"github.com/Dosada05/family-ranking/monitor"
	"github.com/Dosada05/family-ranking/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict Origin once the frontend domain is fixed.
		return true
	},
}

type WebSocketHandler struct {
	hub         *live.Hub
	gameService services.GameService
	metrics     *monitor.Metrics
}

func NewWebSocketHandler(hub *live.Hub, gameService services.GameService, metrics *monitor.Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		gameService: gameService,
		metrics:     metrics,
	}
}

// ServeWs subscribes the connection to live ranking updates of one game.
// Clients connect to /ws/games/{gameID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	gameIDStr := chi.URLParam(r, "gameID")
	gameID, err := strconv.Atoi(gameIDStr)
	if err != nil || gameID <= 0 {
		http.Error(w, "Invalid gameID", http.StatusBadRequest)
		return
	}

	if _, err := h.gameService.GetGameByID(r.Context(), gameID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade websocket connection",
			slog.String("game_id", gameIDStr), slog.Any("error", err))
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: gameIDStr,
	}
	client.Hub.Register <- client

	h.metrics.SubscriberConnected()
	go func() {
		client.WritePump()
	}()
	go func() {
		client.ReadPump()
		h.metrics.SubscriberDisconnected()
	}()
}
