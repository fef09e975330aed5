package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"classroom-backend/internal/models"
)

type itemRule struct {
	list   string
	fields []string
}

// shape is the fixed grammar a kind's output must follow. Fields are checked
// in order: every top-level field first, then the fields of each list item.
type shape struct {
	fields     []string
	items      []itemRule
	arrayField string
	newContent func() models.GeneratedContent
}

var shapes = map[models.ContentKind]shape{
	models.KindQuiz: {
		fields:     []string{"quizNo", "classId", "date", "time", "examDuration", "level", "topic", "questions"},
		items:      []itemRule{{list: "questions", fields: []string{"question", "options", "correctAnswer"}}},
		newContent: func() models.GeneratedContent { return &models.QuizContent{} },
	},
	models.KindAssignment: {
		fields:     []string{"assignmentNo", "classId", "date", "time", "level", "topic", "scenario", "questions"},
		items:      []itemRule{{list: "questions", fields: []string{"question", "correctAnswer"}}},
		newContent: func() models.GeneratedContent { return &models.AssignmentContent{} },
	},
	models.KindPresentation: {
		fields:     []string{"slides"},
		items:      []itemRule{{list: "slides", fields: []string{"title", "content"}}},
		arrayField: "slides",
		newContent: func() models.GeneratedContent { return &models.PresentationContent{} },
	},
	models.KindModule: {
		fields:     []string{"chapters"},
		items:      []itemRule{{list: "chapters", fields: []string{"title", "content"}}},
		arrayField: "chapters",
		newContent: func() models.GeneratedContent { return &models.ModuleContent{} },
	},
	models.KindGrading: {
		fields:     []string{"questions"},
		items:      []itemRule{{list: "questions", fields: []string{"question", "totalMarks", "marksGet"}}},
		newContent: func() models.GeneratedContent { return &models.GradingResult{} },
	},
}

// Parse decodes sanitized model output into the content for kind and rejects
// anything that does not match the kind's shape.
func Parse(kind models.ContentKind, text string, params map[string]string) (models.GeneratedContent, error) {
	sh, ok := shapes[kind]
	if !ok {
		return nil, invalidParameter("unknown-kind:%s", kind)
	}

	data := []byte(strings.TrimSpace(text))
	if len(data) == 0 || !json.Valid(data) {
		return nil, validationFailure(ReasonMalformedJSON)
	}

	var raw map[string]json.RawMessage
	switch data[0] {
	case '{':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, validationFailure(ReasonMalformedJSON)
		}
	case '[':
		if sh.arrayField == "" {
			return nil, validationFailure(ReasonMalformedJSON)
		}
		raw = map[string]json.RawMessage{sh.arrayField: data}
	default:
		return nil, validationFailure(ReasonMalformedJSON)
	}
	if raw == nil {
		return nil, validationFailure(ReasonMalformedJSON)
	}

	rewritten := data[0] == '['
	if kind == models.KindModule {
		split, err := splitFinalAssessment(raw)
		if err != nil {
			return nil, err
		}
		rewritten = rewritten || split
	}

	for _, f := range sh.fields {
		if isEmptyJSON(raw[f]) {
			return nil, missingField(f)
		}
	}
	for _, rule := range sh.items {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw[rule.list], &items); err != nil {
			return nil, validationFailure("invalid-field:" + rule.list)
		}
		for i, item := range items {
			for _, f := range rule.fields {
				if isEmptyJSON(item[f]) {
					return nil, missingField(fmt.Sprintf("%s[%d].%s", rule.list, i, f))
				}
			}
		}
	}

	if rewritten {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return nil, validationFailure(ReasonMalformedJSON)
		}
	}

	content := sh.newContent()
	if err := json.Unmarshal(data, content); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, validationFailure("invalid-field:" + typeErr.Field)
		}
		return nil, validationFailure(ReasonMalformedJSON)
	}

	if err := crossCheck(content, params); err != nil {
		return nil, err
	}
	return content, nil
}

// crossCheck ties generated classwork to the class it was requested for.
func crossCheck(content models.GeneratedContent, params map[string]string) error {
	var classID models.FlexString
	switch c := content.(type) {
	case *models.QuizContent:
		classID = c.ClassID
	case *models.AssignmentContent:
		classID = c.ClassID
	default:
		return nil
	}
	if classID.String() != params[ParamClassID] {
		return validationFailure(ReasonClassIDMismatch)
	}
	return nil
}

// splitFinalAssessment moves a trailing "All MCQs" chapter into allMcqs.
func splitFinalAssessment(raw map[string]json.RawMessage) (bool, error) {
	if isEmptyJSON(raw["chapters"]) || !isEmptyJSON(raw["allMcqs"]) {
		return false, nil
	}
	var chapters []map[string]json.RawMessage
	if err := json.Unmarshal(raw["chapters"], &chapters); err != nil {
		return false, validationFailure("invalid-field:chapters")
	}
	last := chapters[len(chapters)-1]
	var title string
	if err := json.Unmarshal(last["title"], &title); err != nil {
		return false, nil
	}
	if !strings.EqualFold(strings.TrimSpace(title), models.FinalAssessmentTitle) {
		return false, nil
	}

	mcqs := last["mcqs"]
	if isEmptyJSON(mcqs) {
		mcqs = last["questions"]
	}
	rest, err := json.Marshal(chapters[:len(chapters)-1])
	if err != nil {
		return false, validationFailure(ReasonMalformedJSON)
	}
	raw["chapters"] = rest
	if !isEmptyJSON(mcqs) {
		raw["allMcqs"] = mcqs
	}
	return true, nil
}

// isEmptyJSON treats absent values, null, blank strings, empty lists and
// empty objects as missing.
func isEmptyJSON(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return true
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return true
		}
		return strings.TrimSpace(s) == ""
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return true
		}
		return len(items) == 0
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(v, &fields); err != nil {
			return true
		}
		return len(fields) == 0
	}
	return false
}
