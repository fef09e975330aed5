package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

// ConversationHistoryLimit caps how many exchanges a history request returns.
const ConversationHistoryLimit = 50

type conversationStore interface {
	Create(ctx context.Context, c *models.Conversation) error
	ListByEmail(ctx context.Context, email string, limit int) ([]*models.Conversation, error)
}

// TutorService answers free-form study questions as the "AI Professor".
type TutorService struct {
	generator pipeline.Generator
	convos    conversationStore
	opts      pipeline.GenerationOptions
	log       *logger.Logger
}

func NewTutorService(generator pipeline.Generator, convos conversationStore, opts pipeline.GenerationOptions, log *logger.Logger) *TutorService {
	return &TutorService{
		generator: generator,
		convos:    convos,
		opts:      opts,
		log:       log.With("service", "tutor"),
	}
}

// Ask generates an answer and stores the exchange.
func (s *TutorService) Ask(ctx context.Context, email, query string) (*models.Conversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Fields: map[string]string{"query": "Query is required"}}
	}

	raw, err := s.generator.Generate(ctx, buildTutorPrompt(query), s.opts)
	if err != nil {
		return nil, fmt.Errorf("tutor answer: %w", err)
	}
	s.log.Debug("tutor answer generated", "email", email, "chars", len(raw))

	conv := &models.Conversation{
		Email:     email,
		Query:     query,
		Response:  cleanTutorAnswer(raw),
		Timestamp: time.Now().UTC(),
	}
	if err := s.convos.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return conv, nil
}

// History returns the caller's exchanges, oldest first.
func (s *TutorService) History(ctx context.Context, email string) ([]*models.Conversation, error) {
	return s.convos.ListByEmail(ctx, email, ConversationHistoryLimit)
}

func buildTutorPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You are an expert AI Professor. Provide a comprehensive, educational, and scholarly response to the following educational question: ")
	b.WriteString(query)
	b.WriteString(`

Guidelines:
- Use an academic tone
- Provide clear, structured explanation
- Include relevant context and examples
- Break down complex concepts
- Cite general academic principles where applicable
`)
	return b.String()
}

func cleanTutorAnswer(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}
