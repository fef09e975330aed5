package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

const callerEmail = "teacher@school.edu"

type stubRunner struct {
	mu      sync.Mutex
	out     *pipeline.Outcome
	lastReq *models.GenerationRequest
	calls   int
}

func (s *stubRunner) Run(_ context.Context, req *models.GenerationRequest, _ ...pipeline.RunOption) *pipeline.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.out == nil {
		return &pipeline.Outcome{Kind: req.Kind, State: pipeline.StateDone, DocumentID: "doc-1"}
	}
	return s.out
}

func succeeded(content models.GeneratedContent, id string) *pipeline.Outcome {
	return &pipeline.Outcome{Kind: content.Kind(), State: pipeline.StateDone, Content: content, DocumentID: id}
}

func failed(code pipeline.ErrorCode, reason string) *pipeline.Outcome {
	return &pipeline.Outcome{
		State: pipeline.StateFailed,
		Trace: []pipeline.State{pipeline.StateIdle, pipeline.StateFailed},
		Err:   &pipeline.Error{Code: code, Reason: reason},
	}
}

// newRequest builds a request as the router would hand it to a handler:
// authenticated as email, with chi URL params set.
func newRequest(t *testing.T, method, target string, body interface{}, email string, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if email != "" {
		ctx = middleware.WithEmail(ctx, email)
	}
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var out models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out.Error
}

func testLogger() *logger.Logger { return logger.Nop() }
