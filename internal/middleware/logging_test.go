package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"classroom-backend/internal/logger"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithZap(zap.New(core), true)

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("oops"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	req = req.WithContext(WithEmail(req.Context(), "teacher@school.edu"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/check", fields["path"])
	assert.EqualValues(t, 502, fields["status"])
	assert.EqualValues(t, 4, fields["bytes"])
	assert.NotEqual(t, "teacher@school.edu", fields["email"])
}
