// Package backend talks to the exhibition's OCR and persistence API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

// ErrBreakerOpen is returned while the circuit breaker rejects calls.
var ErrBreakerOpen = errors.New("backend circuit open")

type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type Options struct {
	BaseURL string
	// Timeout bounds every request; image processing gets OCRTimeout.
	Timeout       time.Duration
	OCRTimeout    time.Duration
	HTTPClient    HTTPClient
	Breaker       BreakerSettings
	Logger        *zap.Logger
	OnStateChange func(from, to gobreaker.State)
}

// Client wraps every backend call in one circuit breaker so a dead backend
// costs the pollers nothing but a fast error.
type Client struct {
	base       *url.URL
	http       HTTPClient
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
	ocrTimeout time.Duration
	logger     *zap.Logger
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", opts.BaseURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Breaker == (BreakerSettings{}) {
		opts.Breaker = DefaultBreakerSettings()
	}
	logger := opts.Logger
	bs := opts.Breaker
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bs.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bs.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if opts.OnStateChange != nil {
				opts.OnStateChange(from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// client errors say nothing about backend health
			var se *StatusError
			return errors.As(err, &se) && se.Code < 500
		},
	})
	return &Client{
		base:       base,
		http:       opts.HTTPClient,
		breaker:    cb,
		timeout:    opts.Timeout,
		ocrTimeout: opts.OCRTimeout,
		logger:     logger,
	}, nil
}

// BreakerState reports the breaker state for metrics.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

func (c *Client) Answers(ctx context.Context) ([]models.AnswerPoint, error) {
	var out []models.AnswerPoint
	if err := c.do(ctx, http.MethodGet, "/answers", nil, &out, c.timeout); err != nil {
		return nil, err
	}
	// null entries and rows without an id or question cannot be placed
	kept := make([]models.AnswerPoint, 0, len(out))
	for _, a := range out {
		if a.ID == "" || a.QuestionID == "" {
			continue
		}
		kept = append(kept, a)
	}
	return kept, nil
}

func (c *Client) Questions(ctx context.Context) ([]models.Question, error) {
	var out []models.Question
	if err := c.do(ctx, http.MethodGet, "/questions", nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Question(ctx context.Context, id string) (*models.QuestionDetail, error) {
	var out models.QuestionDetail
	if err := c.do(ctx, http.MethodGet, "/question/"+url.PathEscape(id), nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) QuestionColor(ctx context.Context, id string) (*models.QuestionColor, error) {
	var out models.QuestionColor
	if err := c.do(ctx, http.MethodGet, "/question-color/"+url.PathEscape(id), nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewestAnswerID returns the id of the most recently stored answer.
func (c *Client) NewestAnswerID(ctx context.Context) (string, error) {
	var out models.NewestAnswer
	if err := c.do(ctx, http.MethodGet, "/get_newest_answer", nil, &out, c.timeout); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Statistics(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/statistics", nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProcessImage(ctx context.Context, imageBase64 string) (*models.ScanResult, error) {
	var out models.ScanResult
	body := map[string]any{"image": imageBase64}
	if err := c.do(ctx, http.MethodPost, "/process-image", body, &out, c.ocrTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveAnswer stores an answer through POST /answers. Older backends only save
// via /process-image with save_to_database set, so a 404/405 falls back to that.
func (c *Client) SaveAnswer(ctx context.Context, a models.NewAnswer) (*models.SavedAnswer, error) {
	var out models.SavedAnswer
	err := c.do(ctx, http.MethodPost, "/answers", a, &out, c.timeout)
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusMethodNotAllowed) {
		body := map[string]any{
			"save_to_database": true,
			"question_id":      a.QuestionID,
			"answer":           a.Answer,
			"language":         a.Language,
			"x":                a.X,
			"y":                a.Y,
		}
		err = c.do(ctx, http.MethodPost, "/process-image", body, &out, c.ocrTimeout)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, timeout time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, timeout)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s %s", ErrBreakerOpen, method, path)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}
	// path arrives escaped; keep RawPath so ids with spaces or slashes survive
	u := *c.base
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("backend path %s: %w", path, err)
	}
	u.Path = unescaped
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("requestID", reqID),
	)
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
