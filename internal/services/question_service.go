package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

// QuestionBackend exposes the per-question endpoints of the backend.
type QuestionBackend interface {
	Question(ctx context.Context, id string) (*models.QuestionDetail, error)
	QuestionColor(ctx context.Context, id string) (*models.QuestionColor, error)
	Statistics(ctx context.Context) (json.RawMessage, error)
}

type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
	Color   string   `json:"color"`
}

type QuestionService struct {
	backend QuestionBackend
	layout  func() Layout
	logger  *zap.Logger
}

// NewQuestionService resolves fallback colours through layout, which is read
// on every call so a config reload takes effect immediately.
func NewQuestionService(backend QuestionBackend, layout func() Layout, logger *zap.Logger) *QuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if layout == nil {
		layout = DefaultLayout
	}
	return &QuestionService{backend: backend, layout: layout, logger: logger}
}

// Question returns a question with its example answers localized to lang.
func (s *QuestionService) Question(ctx context.Context, id, lang string) (*QuestionView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewInvalidError("question id required")
	}
	d, err := s.backend.Question(ctx, id)
	if err != nil {
		return nil, s.mapBackendError("question", err)
	}
	answers := d.AnswersI18n[lang]
	if len(answers) == 0 {
		answers = d.AnswersI18n["en"]
	}
	if answers == nil {
		answers = []string{}
	}
	color := d.Color
	if color == "" {
		color = s.layout().DefaultColor
	}
	return &QuestionView{ID: id, Text: pickLocalized(d.TextI18n, lang), Answers: answers, Color: color}, nil
}

// Color returns the question's colour pair; unknown colours use the default.
func (s *QuestionService) Color(ctx context.Context, id string) (*models.QuestionColor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewInvalidError("question id required")
	}
	c, err := s.backend.QuestionColor(ctx, id)
	if err != nil {
		return nil, s.mapBackendError("question color", err)
	}
	out := *c
	if out.Color == "" {
		out.Color = s.layout().DefaultColor
	}
	if out.GradientColor == "" {
		out.GradientColor = out.Color
	}
	return &out, nil
}

// Statistics passes the backend's statistics document through untouched.
func (s *QuestionService) Statistics(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.backend.Statistics(ctx)
	if err != nil {
		return nil, s.mapBackendError("statistics", err)
	}
	return raw, nil
}

// statusCoder is implemented by backend HTTP errors.
type statusCoder interface {
	StatusCode() int
}

func (s *QuestionService) mapBackendError(what string, err error) error {
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusNotFound {
		return NewNotFoundError(what + " not found")
	}
	s.logger.Warn("backend call failed", zap.String("call", what), zap.Error(err))
	return NewBadGatewayError(what + " unavailable")
}
