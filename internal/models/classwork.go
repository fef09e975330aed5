package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QuizQuestion struct {
	ID            FlexString `json:"_id"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correctAnswer"`
}

type QuizContent struct {
	QuizNo       FlexString     `json:"quizNo"`
	ClassID      FlexString     `json:"classId"`
	Date         FlexString     `json:"date"`
	Time         FlexString     `json:"time"`
	ExamDuration string         `json:"examDuration"`
	Level        FlexString     `json:"level"`
	Topic        string         `json:"topic"`
	Questions    []QuizQuestion `json:"questions"`
}

func (*QuizContent) Kind() ContentKind { return KindQuiz }

type AssignmentQuestion struct {
	ID            FlexString `json:"_id"`
	Question      string     `json:"question"`
	CorrectAnswer string     `json:"correctAnswer"`
}

type AssignmentContent struct {
	AssignmentNo FlexString           `json:"assignmentNo"`
	ClassID      FlexString           `json:"classId"`
	Date         FlexString           `json:"date"`
	Time         FlexString           `json:"time"`
	Level        FlexString           `json:"level"`
	Topic        string               `json:"topic"`
	Scenario     string               `json:"scenario"`
	Questions    []AssignmentQuestion `json:"questions"`
}

func (*AssignmentContent) Kind() ContentKind { return KindAssignment }

// Classwork is a stored quiz or assignment.
type Classwork struct {
	ID        uuid.UUID       `json:"id"`
	ClassID   string          `json:"class_id"`
	Kind      ContentKind     `json:"kind"`
	Number    string          `json:"number"`
	Topic     string          `json:"topic"`
	CreatedBy string          `json:"created_by"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

type GenerateClassworkRequest struct {
	ClassID        string     `json:"classId" validate:"required"`
	Subject        string     `json:"subject" validate:"required"`
	QuizNo         FlexString `json:"quizNo" validate:"required_without=AssignmentNo"`
	AssignmentNo   FlexString `json:"assignmentNo" validate:"required_without=QuizNo"`
	Date           string     `json:"date" validate:"required"`
	Time           string     `json:"time" validate:"required"`
	Duration       FlexString `json:"duration" validate:"required_with=QuizNo"`
	TimeUnit       string     `json:"timeUnit" validate:"required_with=QuizNo"`
	TotalQuestions int        `json:"totalQuestions" validate:"required,min=1,max=50"`
	Level          FlexString `json:"level" validate:"required"`
	Topic          string     `json:"topic" validate:"required"`
}
