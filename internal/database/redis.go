package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	queueClientName  = "classroom-queue"
	pubSubClientName = "classroom-pubsub"
	pingTimeout      = 10 * time.Second
)

// RedisOptions configures the job queue and websocket fan-out connections.
type RedisOptions struct {
	URL string
	// Workers is the number of pool workers that each hold a blocking BLPOP.
	Workers int
}

// RedisClients keeps queue traffic and pub/sub subscriptions on separate
// pools so long-lived subscriptions never starve BLPOP or lock calls.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(ctx context.Context, opts RedisOptions) (*RedisClients, error) {
	base, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	queue := redis.NewClient(queueOptions(base, opts.Workers))
	if err := queue.Ping(ctx).Err(); err != nil {
		queue.Close()
		return nil, fmt.Errorf("ping redis queue client: %w", err)
	}

	pubsub := redis.NewClient(pubSubOptions(base))
	if err := pubsub.Ping(ctx).Err(); err != nil {
		queue.Close()
		pubsub.Close()
		return nil, fmt.Errorf("ping redis pubsub client: %w", err)
	}

	return &RedisClients{Queue: queue, PubSub: pubsub}, nil
}

// queueOptions gives every worker its own blocking connection with room left
// for enqueues, locks and job-status publishes.
func queueOptions(base *redis.Options, workers int) *redis.Options {
	if workers <= 0 {
		workers = 1
	}
	opt := *base
	opt.ClientName = queueClientName
	opt.PoolSize = workers*2 + 4
	opt.MinIdleConns = workers
	return &opt
}

// pubSubOptions serves subscriptions, which hold a connection per user for as
// long as a socket is open; reads block until a message arrives.
func pubSubOptions(base *redis.Options) *redis.Options {
	opt := *base
	opt.ClientName = pubSubClientName
	opt.ReadTimeout = -1
	opt.ConnMaxIdleTime = -1
	return &opt
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}
