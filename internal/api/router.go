package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/middleware"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/utils"
)

// Recorder receives API level measurements; the metrics collector implements it.
type Recorder interface {
	VisibleBubbles(season, n int)
	Submission(kind string, err error)
}

// SubmissionCounter reports how many answers each kiosk saved.
type SubmissionCounter interface {
	SubmissionCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

type Deps struct {
	Wall        *services.WallService
	Tracker     *services.HighlightTracker
	Scan        *services.ScanService
	Questions   *services.QuestionService
	KioskAuth   *services.KioskAuthService
	Auth        *middleware.TokenAuth
	Submissions SubmissionCounter
	Recorder    Recorder
	Metrics     http.Handler
	// BreakerState reports the backend circuit state for /health.
	BreakerState func() string
	Commit       string
	BuildTime    string
	Logger       *zap.Logger
}

type Router struct {
	Deps
}

func NewRouter(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Router{Deps: d}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	mux.HandleFunc("GET /api/seasons", rt.handleSeasons)
	mux.HandleFunc("GET /api/wall", rt.handleWall)
	mux.HandleFunc("GET /api/clusters/{id}", rt.handleCluster)
	mux.HandleFunc("POST /api/clusters/{id}/next", rt.handleClusterPage(1))
	mux.HandleFunc("POST /api/clusters/{id}/prev", rt.handleClusterPage(-1))
	mux.HandleFunc("POST /api/clusters/{id}/close", rt.handleClusterClose)
	mux.HandleFunc("GET /api/highlight", rt.handleHighlight)
	mux.HandleFunc("POST /api/highlight/dismiss", rt.handleDismiss)
	mux.HandleFunc("POST /api/events/new-answer", rt.handleNewAnswer)

	mux.HandleFunc("GET /api/questions", rt.handleQuestions)
	mux.HandleFunc("GET /api/questions/{id}", rt.handleQuestion)
	mux.HandleFunc("GET /api/questions/{id}/color", rt.handleQuestionColor)
	mux.HandleFunc("GET /api/statistics", rt.handleStatistics)
	mux.HandleFunc("GET /api/stats/seasons", rt.handleSeasonStats)

	mux.HandleFunc("POST /api/kiosk/token", rt.handleKioskToken)
	mux.Handle("POST /api/scan", rt.protect(rt.handleScan))
	mux.Handle("POST /api/answers", rt.protect(rt.handleSubmit))
	mux.Handle("GET /api/stats/kiosks", rt.protect(rt.handleKioskStats))
	mux.Handle("GET /api/export", rt.protect(rt.handleExport))
}

func (rt *Router) protect(h http.HandlerFunc) http.Handler {
	if rt.Auth == nil {
		return middleware.RequireAuth(h)
	}
	return rt.Auth.WithAuth(middleware.RequireAuth(h))
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	out := map[string]any{
		"ok":         true,
		"name":       "Opinion Wall",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.Commit,
		"build_time": rt.BuildTime,
	}
	if rt.Wall != nil {
		answers, clusters := rt.Wall.Counts()
		out["answers"] = answers
		out["clusters"] = clusters
	}
	if rt.BreakerState != nil {
		out["backend"] = rt.BreakerState()
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /version
func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     rt.Commit,
		"build_time": rt.BuildTime,
	})
}
