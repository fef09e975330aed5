package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FinalAssessmentTitle marks the trailing chapter that carries the module-wide MCQs.
const FinalAssessmentTitle = "All MCQs"

type MCQ struct {
	Question string     `json:"question"`
	Options  []string   `json:"options"`
	Answer   string     `json:"answer"`
	Points   FlexString `json:"points,omitempty"`
}

type Chapter struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Example       TextList `json:"example,omitempty"`
	TeacherScript string   `json:"teacherScript,omitempty"`
	MCQs          []MCQ    `json:"mcqs,omitempty"`
}

type ModuleContent struct {
	Chapters []Chapter `json:"chapters"`
	AllMCQs  []MCQ     `json:"allMcqs,omitempty"`
}

func (*ModuleContent) Kind() ContentKind { return KindModule }

// CourseModule is a stored module together with the learner's progress.
type CourseModule struct {
	ID              uuid.UUID         `json:"id"`
	Email           string            `json:"email"`
	Name            string            `json:"name"`
	Content         json.RawMessage   `json:"content"`
	ChapterCount    int               `json:"chapter_count"`
	Progress        []ChapterProgress `json:"progress"`
	CourseStartedAt *time.Time        `json:"course_started_at"`
	CourseEndAt     *time.Time        `json:"course_end_at"`
	CreatedAt       time.Time         `json:"created_at"`
}

type ChapterProgress struct {
	ChapterIndex int             `json:"chapter_index"`
	Submission   json.RawMessage `json:"submission"`
	ChapterEndAt time.Time       `json:"chapter_end_at"`
}

type GenerateModuleRequest struct {
	Email        string `json:"email" validate:"omitempty,email"`
	Name         string `json:"name" validate:"required"`
	ReferenceURL string `json:"referenceUrl" validate:"omitempty,url"`
}
