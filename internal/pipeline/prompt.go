package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"classroom-backend/internal/models"
)

// Parameter names shared by handlers, the worker and the prompt templates.
const (
	ParamSubject        = "subject"
	ParamTopic          = "topic"
	ParamTotalQuestions = "totalQuestions"
	ParamClassID        = "classId"
	ParamQuizNo         = "quizNo"
	ParamAssignmentNo   = "assignmentNo"
	ParamDate           = "date"
	ParamTime           = "time"
	ParamExamDuration   = "examDuration"
	ParamLevel          = "level"
	ParamTone           = "tone"
	ParamPages          = "pages"
	ParamDescription    = "description"
	ParamName           = "name"
	ParamReference      = "reference"
	ParamQuestionText   = "questionText"
	ParamAnswerText     = "answerText"
	ParamStudentName    = "studentName"
	ParamStudentID      = "studentId"
)

// requiredParameters is checked in order; the first gap is reported.
var requiredParameters = map[models.ContentKind][]string{
	models.KindQuiz: {ParamSubject, ParamTopic, ParamTotalQuestions, ParamClassID,
		ParamDate, ParamTime, ParamExamDuration, ParamLevel},
	models.KindAssignment: {ParamSubject, ParamTopic, ParamTotalQuestions, ParamClassID,
		ParamDate, ParamTime, ParamLevel},
	models.KindPresentation: {ParamTopic, ParamTone, ParamPages},
	models.KindModule:       {ParamName},
	models.KindGrading:      {ParamQuestionText, ParamAnswerText},
}

var numericScalar = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

var positiveIntParameters = []string{ParamTotalQuestions, ParamPages}

const noFencesRule = "CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks, do not label the answer as json.\n\n"

// BuildPrompt renders the generation instruction for kind.
func BuildPrompt(kind models.ContentKind, params map[string]string) (string, error) {
	required, ok := requiredParameters[kind]
	if !ok {
		return "", invalidParameter("unknown-kind:%s", kind)
	}
	for _, name := range required {
		if strings.TrimSpace(params[name]) == "" {
			return "", invalidParameter("missing-parameter:%s", name)
		}
	}
	for _, name := range positiveIntParameters {
		v, present := params[name]
		if !present {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err != nil || n <= 0 {
			return "", invalidParameter("invalid-parameter:%s", name)
		}
	}

	switch kind {
	case models.KindQuiz:
		return buildQuizPrompt(params), nil
	case models.KindAssignment:
		return buildAssignmentPrompt(params), nil
	case models.KindPresentation:
		return buildPresentationPrompt(params), nil
	case models.KindModule:
		return buildModulePrompt(params), nil
	default:
		return buildGradingPrompt(params), nil
	}
}

// RequiredParameters lists the parameters kind cannot be built without.
func RequiredParameters(kind models.ContentKind) []string {
	return append([]string(nil), requiredParameters[kind]...)
}

func buildQuizPrompt(p map[string]string) string {
	var b strings.Builder
	subject, topic := p[ParamSubject], p[ParamTopic]

	b.WriteString(fmt.Sprintf("Generate %s questions with the topic %s and provide the correct answers.\n", subject, topic))
	b.WriteString(fmt.Sprintf("Subject: %s. Total Questions: %s. Question Pattern: a), b), c), d).\n", subject, p[ParamTotalQuestions]))
	if level := p[ParamLevel]; level != "" {
		b.WriteString(fmt.Sprintf("Difficulty level: %s.\n", level))
	}
	b.WriteString(noFencesRule)

	b.WriteString("Carefully follow the example and copy quizNo, classId, date, time, examDuration, level and topic exactly:\n")
	b.WriteString("{\n")
	b.WriteString(fmt.Sprintf("  \"quizNo\": %s,\n", jsonScalar(paramOr(p, ParamQuizNo, "1"))))
	b.WriteString(fmt.Sprintf("  \"classId\": %s,\n", jsonString(p[ParamClassID])))
	b.WriteString(fmt.Sprintf("  \"date\": %s,\n", jsonString(p[ParamDate])))
	b.WriteString(fmt.Sprintf("  \"time\": %s,\n", jsonString(p[ParamTime])))
	b.WriteString(fmt.Sprintf("  \"examDuration\": %s,\n", jsonString(p[ParamExamDuration])))
	b.WriteString(fmt.Sprintf("  \"level\": %s,\n", jsonString(p[ParamLevel])))
	b.WriteString(fmt.Sprintf("  \"topic\": %s,\n", jsonString(topic)))
	b.WriteString(`  "questions": [
    {
      "_id": "count on sequence",
      "question": "",
      "options": ["a)", "b)", "c)", "d)"],
      "correctAnswer": "a)/b)/c)/d) The full answer"
    }
  ]
}
`)
	return b.String()
}

func buildAssignmentPrompt(p map[string]string) string {
	var b strings.Builder
	topic := p[ParamTopic]

	b.WriteString(fmt.Sprintf("Generate a %s assignment that covers these topics: %s, built around a realistic scenario, with %s questions.\n",
		p[ParamSubject], topic, p[ParamTotalQuestions]))
	if level := p[ParamLevel]; level != "" {
		b.WriteString(fmt.Sprintf("Difficulty level: %s.\n", level))
	}
	b.WriteString(noFencesRule)

	b.WriteString("Carefully follow the example and copy assignmentNo, classId, date, time, level and topic exactly:\n")
	b.WriteString("{\n")
	b.WriteString(fmt.Sprintf("  \"assignmentNo\": %s,\n", jsonScalar(paramOr(p, ParamAssignmentNo, "1"))))
	b.WriteString(fmt.Sprintf("  \"classId\": %s,\n", jsonString(p[ParamClassID])))
	b.WriteString(fmt.Sprintf("  \"date\": %s,\n", jsonString(p[ParamDate])))
	b.WriteString(fmt.Sprintf("  \"time\": %s,\n", jsonString(p[ParamTime])))
	b.WriteString(fmt.Sprintf("  \"level\": %s,\n", jsonString(p[ParamLevel])))
	b.WriteString(fmt.Sprintf("  \"topic\": %s,\n", jsonString(topic)))
	b.WriteString(`  "scenario": "Write the scenario the questions are based on",
  "questions": [
    {
      "_id": "count on sequence",
      "question": "",
      "correctAnswer": "Proper details"
    }
  ]
}
`)
	return b.String()
}

func buildPresentationPrompt(p map[string]string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Create a presentation outline on %q with a %s tone. The presentation should have %s slides.\n",
		p[ParamTopic], p[ParamTone], p[ParamPages]))
	if desc := p[ParamDescription]; desc != "" {
		b.WriteString(fmt.Sprintf("Here is a brief description: %s\n", desc))
	}
	b.WriteString("Do not use markdown emphasis such as ** or ***.\n")
	b.WriteString(noFencesRule)
	b.WriteString(`Each slide has a 'title' and a 'content' list of short points. Follow this example:
{
  "slides": [
    {"title": "Slide title", "content": ["First point", "Second point"]}
  ]
}
`)
	return b.String()
}

func buildModulePrompt(p map[string]string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Generate a course module outline on %q.\n", p[ParamName]))
	b.WriteString(`1. Divide the module into five or six chapters.
2. Each chapter should include:
   - 'title': for chapter 1 avoid titles like "Table of Content" and start with foundational concepts.
   - 'content': a comprehensive description of the chapter topic, around 300-400 words.
   - 'example': two or three real life examples.
   - 'teacherScript': a short narrative describing how a teacher would explain the chapter to students, with examples.
   - 'mcqs': 2 multiple-choice questions, each with 'question', 'options' (four options labeled a), b), c), d)) and 'answer' (a single letter).
3. Finish with 'allMcqs': 10 new multiple-choice questions about the whole module, each with 'question', 'options', 'answer' and 'points'.
`)
	if ref := strings.TrimSpace(p[ParamReference]); ref != "" {
		b.WriteString("\nBase the chapters on this reference material where it is relevant:\n---REFERENCE---\n")
		b.WriteString(ref)
		b.WriteString("\n---END---\n\n")
	}
	b.WriteString(noFencesRule)
	b.WriteString(`Follow this example:
{
  "chapters": [
    {
      "title": "",
      "content": "",
      "example": ["", ""],
      "teacherScript": "",
      "mcqs": [{"question": "", "options": ["a) ", "b) ", "c) ", "d) "], "answer": "a"}]
    }
  ],
  "allMcqs": [{"question": "", "options": ["a) ", "b) ", "c) ", "d) "], "answer": "b", "points": 1}]
}
`)
	return b.String()
}

func buildGradingPrompt(p map[string]string) string {
	var b strings.Builder

	b.WriteString("Your role is University Teacher.\n")
	if subject := p[ParamSubject]; subject != "" {
		b.WriteString(fmt.Sprintf("Subject: %s.\n", subject))
	}
	b.WriteString("Here is the question paper:\n---QUESTIONS---\n")
	b.WriteString(p[ParamQuestionText])
	b.WriteString("\n---END---\n")
	b.WriteString("Here is the student's answer script:\n---ANSWERS---\n")
	b.WriteString(p[ParamAnswerText])
	b.WriteString("\n---END---\n")
	b.WriteString("Read every question and give the student proper marks for each answer based on the question.\n")
	b.WriteString(noFencesRule)
	b.WriteString(`Follow this example:
{
  "questions": [
    {"_id": "count on sequence", "question": "1/2/3", "totalMarks": "", "marksGet": "", "feedback": ""}
  ],
  "remarks": ""
}
`)
	return b.String()
}

func paramOr(p map[string]string, name, def string) string {
	if v := strings.TrimSpace(p[name]); v != "" {
		return v
	}
	return def
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// jsonScalar keeps numeric values unquoted the way clients send them.
func jsonScalar(s string) string {
	if numericScalar.MatchString(s) {
		return s
	}
	return jsonString(s)
}
