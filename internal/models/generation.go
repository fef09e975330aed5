package models

// Names of the two grading inputs.
const (
	InputQuestion = "question"
	InputAnswer   = "answer"
)

// RawInput is an image or document handed to OCR. Either URL or Data is set.
type RawInput struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// GenerationRequest is built once per incoming call and never mutated by the pipeline.
type GenerationRequest struct {
	Kind       ContentKind       `json:"kind"`
	Owner      string            `json:"owner"`
	Parameters map[string]string `json:"parameters"`
	Inputs     []RawInput        `json:"inputs,omitempty"`
}

// Param returns a parameter or the empty string.
func (r *GenerationRequest) Param(name string) string {
	if r == nil || r.Parameters == nil {
		return ""
	}
	return r.Parameters[name]
}

// Input returns the named raw input.
func (r *GenerationRequest) Input(name string) (RawInput, bool) {
	if r == nil {
		return RawInput{}, false
	}
	for _, in := range r.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return RawInput{}, false
}

type GenerationJobRequest struct {
	Kind       string            `json:"kind" validate:"required,oneof=quiz assignment presentation module grading"`
	Parameters map[string]string `json:"parameters" validate:"required"`
	Inputs     []RawInput        `json:"inputs" validate:"omitempty,dive"`
}
