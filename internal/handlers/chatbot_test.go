package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

type stubTutor struct {
	answer string
	err    error
	asked  string
}

func (s *stubTutor) Ask(_ context.Context, email, query string) (*models.Conversation, error) {
	s.asked = query
	if s.err != nil {
		return nil, s.err
	}
	return &models.Conversation{Email: email, Query: query, Response: s.answer}, nil
}

func (s *stubTutor) History(_ context.Context, email string) ([]*models.Conversation, error) {
	return []*models.Conversation{{Email: email, Query: "q", Response: "a"}}, nil
}

func TestChatbotHandler_AskReturnsPlainText(t *testing.T) {
	tutor := &stubTutor{answer: "Photosynthesis turns light into sugar."}
	h := NewChatbotHandler(tutor, testLogger())

	body := map[string]string{"email": callerEmail, "query": "What is photosynthesis?"}
	rr := httptest.NewRecorder()
	h.Ask(rr, newRequest(t, http.MethodPost, "/chatbot/email", body, callerEmail, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "Photosynthesis turns light into sugar.", rr.Body.String())
	assert.Equal(t, "What is photosynthesis?", tutor.asked)
}

func TestChatbotHandler_AskErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]string
		err    error
		status int
	}{
		{"missing query", map[string]string{"email": callerEmail}, nil, http.StatusBadRequest},
		{"other account", map[string]string{"email": "x@y.z", "query": "q"}, nil, http.StatusForbidden},
		{"blocked", map[string]string{"email": callerEmail, "query": "q"}, fmt.Errorf("tutor answer: %w", pipeline.ErrUpstreamBlocked), http.StatusUnprocessableEntity},
		{"upstream down", map[string]string{"email": callerEmail, "query": "q"}, fmt.Errorf("tutor answer: timeout"), http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewChatbotHandler(&stubTutor{err: tc.err}, testLogger())
			rr := httptest.NewRecorder()
			h.Ask(rr, newRequest(t, http.MethodPost, "/chatbot/email", tc.body, callerEmail, nil))
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestChatbotHandler_Conversations(t *testing.T) {
	h := NewChatbotHandler(&stubTutor{}, testLogger())

	rr := httptest.NewRecorder()
	h.Conversations(rr, newRequest(t, http.MethodGet, "/chatbot/conversations/x", nil, callerEmail, map[string]string{"email": callerEmail}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["conversations"], 1)

	rr = httptest.NewRecorder()
	h.Conversations(rr, newRequest(t, http.MethodGet, "/chatbot/conversations/x", nil, callerEmail, map[string]string{"email": "x@y.z"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
