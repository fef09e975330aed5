package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type GradedQuestion struct {
	ID         FlexString `json:"_id"`
	Question   FlexString `json:"question"`
	TotalMarks FlexString `json:"totalMarks"`
	MarksGet   FlexString `json:"marksGet"`
	Feedback   string     `json:"feedback,omitempty"`
}

type GradingResult struct {
	Questions []GradedQuestion `json:"questions"`
	Remarks   string           `json:"remarks,omitempty"`
}

func (*GradingResult) Kind() ContentKind { return KindGrading }

// CheckedPaper is a stored grading result.
type CheckedPaper struct {
	ID          uuid.UUID       `json:"id"`
	CheckedBy   string          `json:"checked_by"`
	StudentName string          `json:"student_name"`
	StudentID   string          `json:"student_id"`
	Subject     string          `json:"subject"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CheckPaperRequest struct {
	QuestionImg string `json:"questionImg" validate:"required"`
	AnswerImg   string `json:"answerImg" validate:"required"`
	StudentName string `json:"studentName"`
	StudentID   string `json:"studentId"`
	Subject     string `json:"subject"`
}
