package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/middleware"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
)

type seasonOut struct {
	Index   int              `json:"index"`
	Label   string           `json:"label"`
	Quarter services.Quarter `json:"quarter"`
	Year    int              `json:"year"`
}

// GET /api/seasons
func (rt *Router) handleSeasons(w http.ResponseWriter, r *http.Request) {
	lang := middleware.LocaleFromContext(r.Context())
	cal := rt.Wall.Settings().Calendar
	out := make([]seasonOut, 0, cal.Len())
	for i, s := range cal.Seasons() {
		out = append(out, seasonOut{Index: i, Label: services.SeasonLabel(cal, i, lang), Quarter: s.Quarter, Year: s.Year})
	}
	writeJSON(w, http.StatusOK, map[string]any{"default": cal.Default(), "seasons": out})
}

// GET /api/wall?season=N&lang=xx
func (rt *Router) handleWall(w http.ResponseWriter, r *http.Request) {
	season, err := intParam(r, "season", -1)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	view, err := rt.Wall.View(season, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.Recorder != nil {
		rt.Recorder.VisibleBubbles(view.Season, len(view.Bubbles))
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/clusters/{id}?page=N; no page follows the rotating page.
func (rt *Router) handleCluster(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", -1)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	detail, err := rt.Wall.Cluster(r.PathValue("id"), middleware.LocaleFromContext(r.Context()), page)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// POST /api/clusters/{id}/next and /prev
func (rt *Router) handleClusterPage(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := rt.Wall.TurnPage(id, delta); err != nil {
			rt.writeError(w, r, err)
			return
		}
		detail, err := rt.Wall.Cluster(id, middleware.LocaleFromContext(r.Context()), -1)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// POST /api/clusters/{id}/close
func (rt *Router) handleClusterClose(w http.ResponseWriter, r *http.Request) {
	if err := rt.Wall.CloseCluster(r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/highlight
func (rt *Router) handleHighlight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.Tracker.State())
}

// POST /api/highlight/dismiss
func (rt *Router) handleDismiss(w http.ResponseWriter, r *http.Request) {
	rt.Tracker.Dismiss()
	writeJSON(w, http.StatusOK, rt.Tracker.State())
}

// POST /api/events/new-answer {answer_id}; the id is passed through as the
// backend produced it, string or number.
func (rt *Router) handleNewAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AnswerID json.RawMessage `json:"answer_id"`
	}
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	id := strings.TrimSpace(models.FlexString(req.AnswerID))
	if id == "" {
		rt.writeError(w, r, services.NewInvalidError("answer_id required"))
		return
	}
	activated := rt.Tracker.Notify(id)
	writeJSON(w, http.StatusAccepted, map[string]any{"activated": activated, "highlight": rt.Tracker.State()})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, services.NewInvalidError("invalid " + name)
	}
	return n, nil
}
