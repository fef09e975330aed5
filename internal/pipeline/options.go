package pipeline

import "fmt"

type HarmCategory string

const (
	HarmHarassment       HarmCategory = "harassment"
	HarmHateSpeech       HarmCategory = "hate_speech"
	HarmSexuallyExplicit HarmCategory = "sexually_explicit"
	HarmDangerousContent HarmCategory = "dangerous_content"
)

// HarmCategories lists every category a threshold can be set for.
var HarmCategories = []HarmCategory{HarmHarassment, HarmHateSpeech, HarmSexuallyExplicit, HarmDangerousContent}

type BlockThreshold string

const (
	BlockNone             BlockThreshold = "block_none"
	BlockLowAndAbove      BlockThreshold = "block_low_and_above"
	BlockMediumAndAbove   BlockThreshold = "block_medium_and_above"
	BlockOnlyHigh         BlockThreshold = "block_only_high"
	BlockThresholdDefault BlockThreshold = ""
)

// GenerationOptions travel with every generation call.
type GenerationOptions struct {
	Temperature      float32
	TopK             int32
	TopP             float32
	MaxOutputTokens  int32
	SafetyThresholds map[HarmCategory]BlockThreshold
}

// DefaultGenerationOptions mirrors the settings the platform has always used.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:      0.9,
		TopK:             1,
		TopP:             1,
		MaxOutputTokens:  2048,
		SafetyThresholds: UniformSafety(BlockMediumAndAbove),
	}
}

// UniformSafety applies one threshold to every harm category.
func UniformSafety(t BlockThreshold) map[HarmCategory]BlockThreshold {
	out := make(map[HarmCategory]BlockThreshold, len(HarmCategories))
	for _, c := range HarmCategories {
		out[c] = t
	}
	return out
}

func (o GenerationOptions) Validate() error {
	if o.Temperature < 0 || o.Temperature > 1 {
		return fmt.Errorf("temperature %v outside [0,1]", o.Temperature)
	}
	if o.TopP < 0 || o.TopP > 1 {
		return fmt.Errorf("topP %v outside [0,1]", o.TopP)
	}
	if o.TopK < 0 {
		return fmt.Errorf("topK must not be negative")
	}
	if o.MaxOutputTokens <= 0 {
		return fmt.Errorf("maxOutputTokens must be positive")
	}
	for c, t := range o.SafetyThresholds {
		switch t {
		case BlockNone, BlockLowAndAbove, BlockMediumAndAbove, BlockOnlyHigh, BlockThresholdDefault:
		default:
			return fmt.Errorf("unknown block threshold %q for %s", t, c)
		}
	}
	return nil
}
