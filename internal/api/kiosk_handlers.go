package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/middleware"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
)

// POST /api/kiosk/token {kiosk_id, pin}
func (rt *Router) handleKioskToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KioskID string `json:"kiosk_id"`
		PIN     string `json:"pin"`
	}
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	tok, err := rt.KioskAuth.Pair(req.KioskID, req.PIN)
	if err != nil {
		rt.Logger.Warn("kiosk pairing refused", zap.String("kiosk_id", req.KioskID), zap.Error(err))
		rt.writeError(w, r, err)
		return
	}
	rt.Logger.Info("kiosk paired", zap.String("kiosk_id", tok.KioskID))
	writeJSON(w, http.StatusOK, tok)
}

// POST /api/scan {image} (auth)
func (rt *Router) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := decodeJSON(w, r, maxScanBody, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.Scan.ProcessImage(r.Context(), req.Image, middleware.LocaleFromContext(r.Context()))
	if rt.Recorder != nil {
		rt.Recorder.Submission("scan", err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/answers {question_id, answer, language, x, y} (auth)
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req services.SubmitRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	req.KioskID, _ = middleware.KioskIDFromContext(r.Context())
	if req.Language == "" {
		req.Language = middleware.LocaleFromContext(r.Context())
	}
	res, err := rt.Scan.Submit(r.Context(), req)
	if rt.Recorder != nil {
		rt.Recorder.Submission("submit", err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/stats/kiosks?since=24h (auth)
func (rt *Router) handleKioskStats(w http.ResponseWriter, r *http.Request) {
	if rt.Submissions == nil {
		writeJSON(w, http.StatusOK, map[string]any{"kiosks": map[string]int{}})
		return
	}
	window := 24 * time.Hour
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			rt.writeError(w, r, services.NewInvalidError("invalid since"))
			return
		}
		window = d
	}
	since := time.Now().UTC().Add(-window)
	counts, err := rt.Submissions.SubmissionCounts(r.Context(), since)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "kiosks": counts})
}
