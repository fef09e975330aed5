package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/logger"
)

type stubAuth map[string]string

func (s stubAuth) ParseToken(token string) (string, error) {
	if email, ok := s[token]; ok {
		return email, nil
	}
	return "", errors.New("invalid token")
}

type fakePubSub struct {
	mu       sync.Mutex
	channels map[string]chan string
}

func (f *fakePubSub) subscribe(ctx context.Context, channel string) <-chan string {
	ch := make(chan string, 4)
	f.mu.Lock()
	f.channels[channel] = ch
	f.mu.Unlock()
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				out <- msg
			}
		}
	}()
	return out
}

func (f *fakePubSub) publish(channel, msg string) bool {
	f.mu.Lock()
	ch, ok := f.channels[channel]
	f.mu.Unlock()
	if ok {
		ch <- msg
	}
	return ok
}

func TestHub_RejectsMissingOrBadToken(t *testing.T) {
	hub := newHub((&fakePubSub{channels: map[string]chan string{}}).subscribe, stubAuth{}, "", logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	for _, q := range []string{"", "?token=bogus"} {
		resp, err := http.Get(srv.URL + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestHub_ForwardsUpdatesForTheTokenOwner(t *testing.T) {
	ps := &fakePubSub{channels: map[string]chan string{}}
	hub := newHub(ps.subscribe, stubAuth{"tok": "teacher@school.edu"}, "", logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=tok"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return ps.publish("user_updates:teacher@school.edu", `{"type":"completed"}`)
	}, time.Second, 10*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"completed"}`, string(data))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker("https://app.example.com")
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker("*")(req))
}
