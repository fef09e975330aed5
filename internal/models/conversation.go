package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is one chatbot exchange.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatbotRequest struct {
	Email string `json:"email" validate:"required,email"`
	Query string `json:"query" validate:"required"`
}
