package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/pipeline"
)

// GeminiService is the generation client used by the pipeline and the tutor.
type GeminiService struct {
	client    *genai.Client
	modelName string
	log       *logger.Logger
	rateChan  chan struct{} // Token bucket
}

func NewGeminiService(ctx context.Context, apiKey, modelName string, concurrentReqs int, log *logger.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		log:       log.With("service", "gemini", "model", modelName),
		rateChan:  rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends one prompt with the given options. A fresh model handle is
// configured for every call, so concurrent callers never share settings.
func (s *GeminiService) Generate(ctx context.Context, prompt string, opts pipeline.GenerationOptions) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	model := s.client.GenerativeModel(s.modelName)
	applyOptions(model, opts)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			s.log.Warn("generation blocked", "error", err)
			return "", fmt.Errorf("%w: %w", pipeline.ErrUpstreamBlocked, err)
		}
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		s.log.Debug("gemini candidate", "index", i, "finish_reason", cand.FinishReason.String(), "tokens", cand.TokenCount)
		if cand.FinishReason == genai.FinishReasonSafety {
			return "", fmt.Errorf("%w: candidate %d stopped for safety", pipeline.ErrUpstreamBlocked, i)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini returned empty text")
	}
	s.log.Debug("generation finished", "duration_ms", time.Since(start).Milliseconds(), "chars", len(text))
	return text, nil
}

var harmCategories = map[pipeline.HarmCategory]genai.HarmCategory{
	pipeline.HarmHarassment:       genai.HarmCategoryHarassment,
	pipeline.HarmHateSpeech:       genai.HarmCategoryHateSpeech,
	pipeline.HarmSexuallyExplicit: genai.HarmCategorySexuallyExplicit,
	pipeline.HarmDangerousContent: genai.HarmCategoryDangerousContent,
}

var blockThresholds = map[pipeline.BlockThreshold]genai.HarmBlockThreshold{
	pipeline.BlockThresholdDefault: genai.HarmBlockUnspecified,
	pipeline.BlockNone:             genai.HarmBlockNone,
	pipeline.BlockLowAndAbove:      genai.HarmBlockLowAndAbove,
	pipeline.BlockMediumAndAbove:   genai.HarmBlockMediumAndAbove,
	pipeline.BlockOnlyHigh:         genai.HarmBlockOnlyHigh,
}

func applyOptions(model *genai.GenerativeModel, opts pipeline.GenerationOptions) {
	model.SetTemperature(opts.Temperature)
	model.SetTopK(opts.TopK)
	model.SetTopP(opts.TopP)
	model.SetMaxOutputTokens(opts.MaxOutputTokens)

	model.SafetySettings = nil
	for _, c := range pipeline.HarmCategories {
		t, ok := opts.SafetyThresholds[c]
		if !ok {
			continue
		}
		model.SafetySettings = append(model.SafetySettings, &genai.SafetySetting{
			Category:  harmCategories[c],
			Threshold: blockThresholds[t],
		})
	}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
