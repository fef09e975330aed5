package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Slide struct {
	Title   string   `json:"title"`
	Content TextList `json:"content"`
}

type PresentationContent struct {
	Slides []Slide `json:"slides"`
}

func (*PresentationContent) Kind() ContentKind { return KindPresentation }

type Presentation struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	Topic       string          `json:"topic"`
	Tone        string          `json:"tone"`
	Pages       int             `json:"pages"`
	Description string          `json:"description"`
	Slides      json.RawMessage `json:"slides"`
	CreatedAt   time.Time       `json:"created_at"`
}

type GeneratePresentationRequest struct {
	Topic       string `json:"topic" validate:"required"`
	Tone        string `json:"tone" validate:"required"`
	Pages       int    `json:"pages" validate:"required,min=1,max=60"`
	Description string `json:"description"`
}
