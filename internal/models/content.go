package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// ContentKind selects the template and the shape a generation request targets.
type ContentKind string

const (
	KindQuiz         ContentKind = "quiz"
	KindAssignment   ContentKind = "assignment"
	KindPresentation ContentKind = "presentation"
	KindModule       ContentKind = "module"
	KindGrading      ContentKind = "grading"
)

var contentKinds = []ContentKind{KindQuiz, KindAssignment, KindPresentation, KindModule, KindGrading}

// ParseContentKind accepts the kind names used in job payloads.
func ParseContentKind(s string) (ContentKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range contentKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// GeneratedContent is the validated, kind-tagged result of a generation run.
type GeneratedContent interface {
	Kind() ContentKind
}

// FlexString holds a scalar the model may emit either as a JSON string or a
// JSON number. It always marshals back as a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
		return nil
	}
	return &json.UnmarshalTypeError{Value: jsonValueName(data[0]), Type: reflect.TypeOf(FlexString(""))}
}

func (f FlexString) String() string { return string(f) }

// TextList holds a field the model may emit either as one string or as a list
// of strings. It always marshals back as a list.
type TextList []string

func (t *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TextList{s}
		return nil
	case '[':
		var items []FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make(TextList, 0, len(items))
		for _, it := range items {
			out = append(out, string(it))
		}
		*t = out
		return nil
	}
	return &json.UnmarshalTypeError{Value: jsonValueName(data[0]), Type: reflect.TypeOf(TextList(nil))}
}

// Join flattens the list into one paragraph per item.
func (t TextList) Join() string {
	return strings.Join(t, "\n")
}

func jsonValueName(first byte) string {
	switch first {
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	default:
		return "value"
	}
}
