package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	chatHandler "github.com/qaderichat/backend/internal/handler/chat"
	"github.com/qaderichat/backend/internal/middleware"
	chatService "github.com/qaderichat/backend/internal/service/chat"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second

	assistantName = "QaderiChat"
)

// Handler serves the realtime chat channel.
type Handler struct {
	chatSvc  *chatService.Service
	limiter  *middleware.RateLimiter
	upgrader websocket.Upgrader
	pongWait time.Duration
}

// New creates a websocket handler. limiter may be nil.
func New(chatSvc *chatService.Service, limiter *middleware.RateLimiter) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		limiter:  limiter,
		pongWait: pongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the channel on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleWebSocket)
}

type inboundFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	IsTyping bool   `json:"is_typing"`
	User     string `json:"user"`
}

// conn serialises writes; gorilla allows one concurrent writer.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	logger *zerolog.Logger
}

func (c *conn) send(frame map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(frame); err != nil {
		c.logger.Warn().Err(err).Str("type", frame["type"].(string)).Msg("websocket write failed")
	}
}

func (c *conn) sendError(message string) {
	c.send(map[string]any{"type": "error", "message": message})
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionKey := middleware.SessionKey(r.Context())
	if sessionKey == "" {
		http.Error(w, "session cookie required", http.StatusBadRequest)
		return
	}
	identity := middleware.Identity(r)
	logger := hlog.FromRequest(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, logger: logger}
	logger.Info().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadLimit(chatHandler.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	go h.pingLoop(ctx, c)

	c.send(map[string]any{
		"type":    "connection_established",
		"message": "Connected to QaderiChat",
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			logger.Info().Msg("websocket disconnected")
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("Invalid JSON format")
			continue
		}
		if frame.Type == "" {
			frame.Type = "chat_message"
		}

		switch frame.Type {
		case "chat_message":
			h.handleChatMessage(ctx, c, sessionKey, identity, frame)
			// The vendor call may outlast the read deadline set above.
			_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))
		case "typing_indicator":
			user := frame.User
			if user == "" {
				user = "User"
			}
			c.send(typingFrame(frame.IsTyping, user))
		case "clear_chat":
			h.handleClearChat(ctx, c, sessionKey)
		default:
			c.sendError("Unknown message type")
		}
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, c *conn, sessionKey, identity string, frame inboundFrame) {
	if !h.limiter.Allow(identity) {
		c.sendError("Too many requests, please slow down")
		return
	}

	c.send(typingFrame(true, assistantName))
	result, err := h.chatSvc.Send(ctx, sessionKey, frame.Message)
	c.send(typingFrame(false, assistantName))

	if errors.Is(err, chatService.ErrEmptyMessage) {
		c.sendError("Message cannot be empty")
		return
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("websocket send failed")
		c.sendError("Failed to process message")
		return
	}

	c.send(map[string]any{
		"type": "chat_response",
		"data": chatHandler.NewSendResponse(result),
	})
}

func (h *Handler) handleClearChat(ctx context.Context, c *conn, sessionKey string) {
	if _, err := h.chatSvc.Clear(ctx, sessionKey); err != nil {
		c.logger.Error().Err(err).Msg("websocket clear failed")
		c.sendError("Failed to clear chat")
		return
	}
	c.send(map[string]any{"type": "chat_cleared", "success": true})
}

func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func typingFrame(isTyping bool, user string) map[string]any {
	return map[string]any{
		"type":      "typing_indicator",
		"is_typing": isTyping,
		"user":      user,
	}
}
