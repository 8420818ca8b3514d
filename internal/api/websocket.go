// Package api - WebSocket stream of a player's rounds
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/alexbotov/cascade/internal/game"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeMessage(msgType string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: payloadBytes})
}

// WSClient represents a WebSocket client connection
type WSClient struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string

	mu     sync.Mutex
	closed bool
}

// trySend queues msg without blocking; a full or closed client drops it
func (c *WSClient) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans engine events out to the websocket clients of the round's player
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]struct{}
	log     *zap.Logger
}

// NewHub creates an empty hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*WSClient]struct{}),
		log:     log.Named("ws"),
	}
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.playerID]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.clients[c.playerID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.playerID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.playerID)
		}
	}
}

// Connected reports how many clients a player has open
func (h *Hub) Connected(playerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[playerID])
}

// Notify implements game.Observer
func (h *Hub) Notify(ev game.Event) {
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients[ev.PlayerID]))
	for c := range h.clients[ev.PlayerID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	// the steps were already streamed; the settled event carries the summary only
	if ev.Result != nil && ev.Result.Trace != nil {
		summary := *ev.Result
		summary.Trace = nil
		ev.Result = &summary
	}

	msg, err := encodeMessage(string(ev.Type), ev)
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	for _, c := range targets {
		if !c.trySend(msg) {
			h.log.Warn("dropped event for slow client",
				zap.String("player_id", ev.PlayerID),
				zap.String("type", string(ev.Type)))
		}
	}
}

// HandleWebSocket upgrades the request and streams the player's round events
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: player.ID,
	}
	h.hub.register(client)

	go client.writePump()
	go h.readPump(client)
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the handler
func (h *Handler) readPump(c *WSClient) {
	defer func() {
		h.hub.unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	h.sendMessage(c, "connected", map[string]interface{}{
		"player_id": c.playerID,
		"message":   "Connected to round stream",
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", zap.String("player_id", c.playerID), zap.Error(err))
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}

		h.handleWSMessage(c, &msg)
	}
}

// handleWSMessage processes incoming WebSocket messages
func (h *Handler) handleWSMessage(c *WSClient, msg *WSMessage) {
	ctx := context.Background()

	// the read pump runs outside the HTTP recovery middleware
	defer func() {
		if err := recover(); err != nil {
			h.log.Error("panic handling websocket message",
				zap.String("player_id", c.playerID),
				zap.String("type", msg.Type),
				zap.Any("panic", err),
				zap.Stack("stack"))
			h.sendError(c, "INTERNAL_ERROR", "Internal server error")
		}
	}()

	switch msg.Type {
	case "spin", "buy":
		h.handleRoundMessage(ctx, c, msg)

	case "balance":
		balance, err := h.funds.Balance(ctx, c.playerID)
		if err != nil {
			h.sendError(c, "BALANCE_ERROR", "Failed to get balance")
			return
		}
		h.sendMessage(c, "balance", map[string]interface{}{
			"available": balance.Float64(),
			"currency":  balance.Currency,
		})

	case "history":
		history, err := h.game.History(ctx, c.playerID, 10)
		if err != nil {
			h.sendError(c, "HISTORY_ERROR", "Failed to get history")
			return
		}
		h.sendMessage(c, "history", history)

	case "ping":
		h.sendMessage(c, "pong", map[string]interface{}{
			"timestamp": time.Now().Unix(),
		})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

// handleRoundMessage plays a spin or bonus buy; its steps reach the client
// through the hub before the outcome message
func (h *Handler) handleRoundMessage(ctx context.Context, c *WSClient, msg *WSMessage) {
	var payload struct {
		GameID string `json:"game_id" validate:"required"`
		SpinRequest
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(c, "INVALID_PAYLOAD", "Invalid round payload")
		return
	}
	if err := h.validator.ValidateStruct(&payload); err != nil {
		h.sendMessage(c, "error", &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Fields:  FormatValidationError(err),
		})
		return
	}

	req := payload.engineRequest(c.playerID, payload.GameID)

	var (
		result *game.RoundResult
		err    error
	)
	if msg.Type == "buy" {
		result, err = h.game.Buy(ctx, req)
	} else {
		result, err = h.game.Spin(ctx, req)
	}
	if err != nil {
		_, apiErr := roundError(err)
		h.sendMessage(c, "error", apiErr)
		return
	}

	h.sendMessage(c, "outcome", result)
}

// sendMessage sends a message to the client
func (h *Handler) sendMessage(c *WSClient, msgType string, payload interface{}) {
	msg, err := encodeMessage(msgType, payload)
	if err != nil {
		h.log.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}
	c.trySend(msg)
}

// sendError sends an error message to the client
func (h *Handler) sendError(c *WSClient, code, message string) {
	h.sendMessage(c, "error", &APIError{Code: code, Message: message})
}
