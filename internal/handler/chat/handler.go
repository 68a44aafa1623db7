package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/qaderichat/backend/internal/middleware"
	"github.com/qaderichat/backend/internal/model/chat"
	"github.com/qaderichat/backend/internal/service/ai"
	chatService "github.com/qaderichat/backend/internal/service/chat"
	"github.com/qaderichat/backend/pkg/utils"
)

// MaxMessageBytes caps a send-message body and a websocket frame.
const MaxMessageBytes = 64 << 10

// Diagnostics is reported by the test endpoint.
type Diagnostics struct {
	Provider        ai.Kind
	Model           string
	Demo            bool
	HasOpenAIKey    bool
	HasAnthropicKey bool
	Debug           bool
}

// Handler serves the chat JSON API.
type Handler struct {
	chatSvc *chatService.Service
	limiter *middleware.RateLimiter
	diag    Diagnostics
}

// New creates a chat handler. limiter may be nil.
func New(chatSvc *chatService.Service, limiter *middleware.RateLimiter, diag Diagnostics) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		limiter: limiter,
		diag:    diag,
	}
}

// RegisterRoutes mounts the chat API. Paths are registered without the
// trailing slash; the router strips it.
func (h *Handler) RegisterRoutes(r chi.Router) {
	send := r.With(h.limiter.Middleware)
	send.Post("/send-message", h.handleSendMessage)
	send.Post("/chat", h.handleSendMessage)

	r.Get("/get-messages", h.handleGetMessages)
	r.Post("/clear-chat", h.handleClearChat)
	r.Get("/get-sessions", h.handleGetSessions)
	r.Get("/get-session-messages/{sessionID}", h.handleGetSessionMessages)

	r.Get("/test", h.handleTest)
	r.Post("/test", h.handleTest)
}

// SendResponse is the JSON shape of a relayed message.
type SendResponse struct {
	Success          bool           `json:"success"`
	UserMessage      chat.Message   `json:"user_message"`
	AssistantMessage chat.Message   `json:"assistant_message"`
	SessionID        string         `json:"session_id"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Error            string         `json:"error,omitempty"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	body := http.MaxBytesReader(w, r.Body, MaxMessageBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "Message is too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	result, err := h.chatSvc.Send(r.Context(), middleware.SessionKey(r.Context()), payload.Message)
	if errors.Is(err, chatService.ErrEmptyMessage) {
		utils.RespondError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("send message failed")
		utils.RespondError(w, http.StatusInternalServerError, "Unexpected error occurred")
		return
	}

	utils.RespondJSON(w, http.StatusOK, NewSendResponse(result))
}

// NewSendResponse renders a relay result for the browser.
func NewSendResponse(result chatService.SendResult) SendResponse {
	return SendResponse{
		Success:          result.Success,
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessage,
		SessionID:        result.Session.ID,
		Metadata:         result.Metadata,
		Error:            string(result.ErrorKind),
	}
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	messages, err := h.chatSvc.Messages(r.Context(), middleware.SessionKey(r.Context()), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("get messages failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": messages,
	})
}

func (h *Handler) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if _, err := h.chatSvc.Clear(r.Context(), middleware.SessionKey(r.Context())); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("clear chat failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to clear chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Chat history cleared successfully",
	})
}

func (h *Handler) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.Sessions(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list sessions failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to load sessions")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
	})
}

func (h *Handler) handleGetSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(sessionID); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid session id")
		return
	}

	messages, err := h.chatSvc.SessionMessages(r.Context(), sessionID)
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session", sessionID).Msg("load session messages failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": messages,
	})
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           "API is working!",
		"method":            r.Method,
		"ai_provider":       h.diag.Provider,
		"model":             h.diag.Model,
		"demo_mode":         h.diag.Demo,
		"has_openai_key":    h.diag.HasOpenAIKey,
		"has_anthropic_key": h.diag.HasAnthropicKey,
		"session_key":       middleware.SessionKey(r.Context()),
		"debug":             h.diag.Debug,
	})
}
