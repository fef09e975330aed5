package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	OwnerEmail   string          `json:"owner_email"`
	Kind         ContentKind     `json:"kind"`
	RequestJSON  json.RawMessage `json:"request"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	Stage        string          `json:"stage"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ResultID     *uuid.UUID      `json:"result_id"`
	ErrorCode    *string         `json:"error_code"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
	Stage    string    `json:"stage"`
}

type CompletedEvent struct {
	JobID      uuid.UUID   `json:"job_id"`
	ResultID   string      `json:"result_id"`
	ResultType ContentKind `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
	WillRetry    bool      `json:"will_retry"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
