package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/models"
)

// UpdateChannel is the pub/sub channel the websocket hub listens on for one
// account.
func UpdateChannel(email string) string {
	return fmt.Sprintf("user_updates:%s", email)
}

// UpdatePublisher sends websocket updates via Redis pub/sub.
type UpdatePublisher struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewUpdatePublisher(redisClient *redis.Client, log *logger.Logger) *UpdatePublisher {
	return &UpdatePublisher{redis: redisClient, log: log}
}

func (p *UpdatePublisher) Publish(ctx context.Context, email string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal update", "type", msg.Type, "error", err)
		return
	}
	if err := p.redis.Publish(ctx, UpdateChannel(email), data).Err(); err != nil {
		p.log.Warn("publish update", "type", msg.Type, "owner", email, "error", err)
	}
}
