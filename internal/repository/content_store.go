package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

type classworkCreator interface {
	Create(ctx context.Context, c *models.Classwork) error
}

type presentationCreator interface {
	Create(ctx context.Context, p *models.Presentation) error
}

type moduleCreator interface {
	Create(ctx context.Context, m *models.CourseModule) error
}

type paperCreator interface {
	Create(ctx context.Context, p *models.CheckedPaper) error
}

// ContentStore persists validated pipeline output, one insert per run, into
// the table of its kind.
type ContentStore struct {
	classwork     classworkCreator
	presentations presentationCreator
	modules       moduleCreator
	papers        paperCreator
}

func NewContentStore(classwork classworkCreator, presentations presentationCreator, modules moduleCreator, papers paperCreator) *ContentStore {
	return &ContentStore{
		classwork:     classwork,
		presentations: presentations,
		modules:       modules,
		papers:        papers,
	}
}

func (s *ContentStore) Save(ctx context.Context, req *models.GenerationRequest, content models.GeneratedContent) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", content.Kind(), err)
	}

	switch c := content.(type) {
	case *models.QuizContent:
		return s.saveClasswork(ctx, req, models.KindQuiz, c.QuizNo.String(), c.Topic, data)
	case *models.AssignmentContent:
		return s.saveClasswork(ctx, req, models.KindAssignment, c.AssignmentNo.String(), c.Topic, data)

	case *models.PresentationContent:
		slides, err := json.Marshal(c.Slides)
		if err != nil {
			return "", err
		}
		pages, _ := strconv.Atoi(strings.TrimSpace(req.Param(pipeline.ParamPages)))
		p := &models.Presentation{
			Email:       req.Owner,
			Topic:       req.Param(pipeline.ParamTopic),
			Tone:        req.Param(pipeline.ParamTone),
			Pages:       pages,
			Description: req.Param(pipeline.ParamDescription),
			Slides:      slides,
		}
		if err := s.presentations.Create(ctx, p); err != nil {
			return "", err
		}
		return p.ID.String(), nil

	case *models.ModuleContent:
		m := &models.CourseModule{
			Email:        req.Owner,
			Name:         req.Param(pipeline.ParamName),
			Content:      data,
			ChapterCount: len(c.Chapters),
		}
		if err := s.modules.Create(ctx, m); err != nil {
			return "", err
		}
		return m.ID.String(), nil

	case *models.GradingResult:
		p := &models.CheckedPaper{
			CheckedBy:   req.Owner,
			StudentName: req.Param(pipeline.ParamStudentName),
			StudentID:   req.Param(pipeline.ParamStudentID),
			Subject:     req.Param(pipeline.ParamSubject),
			Result:      data,
		}
		if err := s.papers.Create(ctx, p); err != nil {
			return "", err
		}
		return p.ID.String(), nil
	}

	return "", fmt.Errorf("no store for content kind %s", content.Kind())
}

func (s *ContentStore) saveClasswork(ctx context.Context, req *models.GenerationRequest, kind models.ContentKind, number, topic string, data json.RawMessage) (string, error) {
	c := &models.Classwork{
		ClassID:   req.Param(pipeline.ParamClassID),
		Kind:      kind,
		Number:    number,
		Topic:     topic,
		CreatedBy: req.Owner,
		Content:   data,
	}
	if err := s.classwork.Create(ctx, c); err != nil {
		return "", err
	}
	return c.ID.String(), nil
}
