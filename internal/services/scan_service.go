package services

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/utils"
)

// ScanBackend is the OCR and persistence side of the external backend.
type ScanBackend interface {
	ProcessImage(ctx context.Context, imageBase64 string) (*models.ScanResult, error)
	SaveAnswer(ctx context.Context, a models.NewAnswer) (*models.SavedAnswer, error)
}

// SubmissionNotifier receives the id of a freshly saved answer.
type SubmissionNotifier interface {
	Notify(id string) bool
}

// WallRefresher rebuilds the wall after a submission.
type WallRefresher interface {
	Refresh(ctx context.Context) error
}

// SubmissionLog records which kiosk saved which answer.
type SubmissionLog interface {
	RecordSubmission(ctx context.Context, answerID, kioskID, questionID string, at time.Time) error
}

// SubmitRequest is a visitor's confirmed (possibly hand-corrected) answer.
// X and Y are clamped to [-1, 1] before saving since OCR can overshoot.
type SubmitRequest struct {
	QuestionID string  `json:"question_id" validate:"required"`
	Answer     string  `json:"answer" validate:"required,max=2000"`
	Language   string  `json:"language" validate:"omitempty,max=8"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	// KioskID comes from the caller's token, never from the body.
	KioskID string `json:"-"`
}

type SubmitResult struct {
	AnswerID string `json:"answer_id"`
}

// ScanService runs the kiosk flow: read a photographed post-it, let the
// visitor confirm it, save it and put it on the wall.
type ScanService struct {
	backend   ScanBackend
	notifier  SubmissionNotifier
	refresher WallRefresher
	log       SubmissionLog
	validate  *validator.Validate
	logger    *zap.Logger
	maxImage  int
}

// DefaultMaxImageBytes bounds the decoded size of an uploaded photo.
const DefaultMaxImageBytes = 8 << 20

func NewScanService(backend ScanBackend, notifier SubmissionNotifier, refresher WallRefresher, logger *zap.Logger) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanService{
		backend:   backend,
		notifier:  notifier,
		refresher: refresher,
		validate:  validator.New(),
		logger:    logger,
		maxImage:  DefaultMaxImageBytes,
	}
}

// WithSubmissionLog enables the per-kiosk submission log.
func (s *ScanService) WithSubmissionLog(log SubmissionLog) *ScanService {
	s.log = log
	return s
}

// ProcessImage sends a base64 photo to OCR. Any backend failure comes back as a
// scan_failed error that tells the kiosk to offer manual entry.
func (s *ScanService) ProcessImage(ctx context.Context, image, lang string) (*models.ScanResult, error) {
	image = stripDataURL(strings.TrimSpace(image))
	if image == "" {
		return nil, NewInvalidError("image required")
	}
	if base64.StdEncoding.DecodedLen(len(image)) > s.maxImage {
		return nil, NewInvalidError("image too large")
	}
	if _, err := base64.StdEncoding.DecodeString(image); err != nil {
		return nil, NewInvalidError("image is not valid base64")
	}
	res, err := s.backend.ProcessImage(ctx, image)
	if err != nil {
		s.logger.Warn("process image failed", zap.Error(err))
		return nil, NewScanFailedError(utils.T(lang, "scan.failed"))
	}
	if strings.TrimSpace(res.Answer) == "" {
		return nil, NewScanFailedError(utils.T(lang, "scan.failed"))
	}
	return res, nil
}

// Submit saves the answer, announces it to the highlight tracker and refreshes
// the wall so the visitor sees their bubble right away.
func (s *ScanService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	req.Answer = strings.TrimSpace(req.Answer)
	req.QuestionID = strings.TrimSpace(req.QuestionID)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, NewInvalidError("invalid " + strings.ToLower(verrs[0].Field()))
		}
		return nil, NewInvalidError(err.Error())
	}
	saved, err := s.backend.SaveAnswer(ctx, models.NewAnswer{
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Language:   req.Language,
		X:          clampAxis(req.X),
		Y:          clampAxis(req.Y),
	})
	if err != nil {
		s.logger.Error("save answer failed", zap.String("question_id", req.QuestionID), zap.Error(err))
		return nil, NewBadGatewayError("could not save answer")
	}
	if saved.ID == "" {
		return nil, NewBadGatewayError("backend returned no answer id")
	}
	if s.log != nil {
		if err := s.log.RecordSubmission(ctx, saved.ID, req.KioskID, req.QuestionID, time.Now().UTC()); err != nil {
			s.logger.Warn("record submission", zap.String("answer_id", saved.ID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(saved.ID)
	}
	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx); err != nil {
			s.logger.Warn("refresh after submit failed", zap.Error(err))
		}
	}
	s.logger.Info("answer submitted", zap.String("answer_id", saved.ID), zap.String("question_id", req.QuestionID))
	return &SubmitResult{AnswerID: saved.ID}, nil
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// stripDataURL drops a "data:image/jpeg;base64," prefix sent by browsers.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
