package api

import (
	"net/http"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/middleware"
)

// GET /api/questions
func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": rt.Wall.Questions(middleware.LocaleFromContext(r.Context())),
	})
}

// GET /api/questions/{id}
func (rt *Router) handleQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := rt.Questions.Question(r.Context(), r.PathValue("id"), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GET /api/questions/{id}/color
func (rt *Router) handleQuestionColor(w http.ResponseWriter, r *http.Request) {
	c, err := rt.Questions.Color(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GET /api/statistics
func (rt *Router) handleStatistics(w http.ResponseWriter, r *http.Request) {
	raw, err := rt.Questions.Statistics(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// GET /api/stats/seasons
func (rt *Router) handleSeasonStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.Wall.SeasonStats(middleware.LocaleFromContext(r.Context())))
}

// GET /api/export?format=answers|clusters (auth)
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	b, err := rt.Wall.Export(format, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if format == "" {
		format = "answers"
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+format+".csv")
	_, _ = w.Write(b)
}
