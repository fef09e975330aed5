package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/services"
)

type tutor interface {
	Ask(ctx context.Context, email, query string) (*models.Conversation, error)
	History(ctx context.Context, email string) ([]*models.Conversation, error)
}

type ChatbotHandler struct {
	tutor tutor
	log   *logger.Logger
}

func NewChatbotHandler(t tutor, log *logger.Logger) *ChatbotHandler {
	return &ChatbotHandler{tutor: t, log: log.With("handler", "chatbot")}
}

// Ask answers with the tutor's reply as plain text.
func (h *ChatbotHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.ChatbotRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if middleware.NormalizeEmail(req.Email) != middleware.GetEmail(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	conv, err := h.tutor.Ask(r.Context(), middleware.GetEmail(r.Context()), req.Query)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			handleServiceError(w, r, verr)
		case errors.Is(err, pipeline.ErrUpstreamBlocked):
			h.log.Warn("tutor answer blocked", "error", err)
			writeJSON(w, http.StatusUnprocessableEntity, errorResp("CONTENT_BLOCKED", genericFailureMessage, r))
		default:
			h.log.Error("tutor answer failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResp("UPSTREAM_UNAVAILABLE", genericFailureMessage, r))
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(conv.Response))
}

// Conversations returns up to the last 50 exchanges, oldest first.
func (h *ChatbotHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	email, ok := requireOwner(w, r, chi.URLParam(r, "email"))
	if !ok {
		return
	}

	convs, err := h.tutor.History(r.Context(), email)
	if err != nil {
		h.log.Error("list conversations", "email", email, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch conversations", r))
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}
