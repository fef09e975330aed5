package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/services"
)

const writeWait = 10 * time.Second

type tokenParser interface {
	ParseToken(tokenStr string) (string, error)
}

// subscribeFunc delivers pub/sub payloads for channel until ctx is done.
type subscribeFunc func(ctx context.Context, channel string) <-chan string

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans job updates published for an account out to every socket that
// account has open.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	cancelFuncs map[string]context.CancelFunc
	auth        tokenParser
	subscribe   subscribeFunc
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

func NewHub(redisClient *redis.Client, auth tokenParser, allowedOrigin string, log *logger.Logger) *Hub {
	return newHub(redisSubscriber(redisClient, log), auth, allowedOrigin, log)
}

func newHub(subscribe subscribeFunc, auth tokenParser, allowedOrigin string, log *logger.Logger) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		cancelFuncs: make(map[string]context.CancelFunc),
		auth:        auth,
		subscribe:   subscribe,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		log: log.With("component", "websocket"),
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowed == "" || allowed == "*" || origin == "" || origin == allowed
	}
}

func redisSubscriber(redisClient *redis.Client, log *logger.Logger) subscribeFunc {
	return func(ctx context.Context, channel string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			pubsub := redisClient.Subscribe(ctx, channel)
			defer pubsub.Close()

			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						log.Warn("pubsub channel closed", "channel", channel)
						return
					}
					select {
					case out <- msg.Payload:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	}
}

// HandleWebSocket authenticates with the token query parameter, since
// browsers cannot set headers on the upgrade request.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	email, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(email, c)

	go func() {
		defer h.unregisterConnection(email, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(email string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[email] = append(h.connections[email], c)

	// The first socket for an account opens its subscription.
	if len(h.connections[email]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[email] = cancel
		go h.forward(ctx, email)
	}

	h.log.Info("websocket connected", "email", email, "connections", len(h.connections[email]))
}

func (h *Hub) unregisterConnection(email string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[email]
	for i, existing := range conns {
		if existing == c {
			h.connections[email] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[email]) == 0 {
		delete(h.connections, email)
		if cancel, ok := h.cancelFuncs[email]; ok {
			cancel()
			delete(h.cancelFuncs, email)
		}
	}

	h.log.Info("websocket disconnected", "email", email)
}

func (h *Hub) forward(ctx context.Context, email string) {
	for payload := range h.subscribe(ctx, services.UpdateChannel(email)) {
		h.broadcast(email, []byte(payload))
	}
}

func (h *Hub) broadcast(email string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[email]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", "email", email, "error", err)
		}
	}
}

// Close drops every subscription and socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for email, cancel := range h.cancelFuncs {
		cancel()
		for _, c := range h.connections[email] {
			c.conn.Close()
		}
	}
	h.connections = make(map[string][]*client)
	h.cancelFuncs = make(map[string]context.CancelFunc)
}
