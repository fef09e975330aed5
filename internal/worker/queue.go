package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"classroom-backend/internal/models"
)

const (
	QueueName = "queue:generation"
	lockTTL   = 10 * time.Minute
)

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("queue empty")

// Queue is the Redis list the API pushes jobs onto and workers pop from.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.redis.RPush(ctx, QueueName, data).Err()
}

func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	result, err := q.redis.BLPop(ctx, timeout, QueueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}

	var job models.Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Lock claims a job so a duplicate delivery is skipped by other workers.
func (q *Queue) Lock(ctx context.Context, job *models.Job) (bool, error) {
	return q.redis.SetNX(ctx, lockKey(job), "1", lockTTL).Result()
}

func (q *Queue) Unlock(ctx context.Context, job *models.Job) error {
	return q.redis.Del(ctx, lockKey(job)).Err()
}

func lockKey(job *models.Job) string {
	return fmt.Sprintf("job_lock:%s:%d", job.ID, job.RetryCount)
}
