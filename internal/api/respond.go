package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
)

const (
	maxJSONBody = 64 << 10
	// base64 inflates by 4/3; leave headroom for the JSON envelope
	maxScanBody = services.DefaultMaxImageBytes*4/3 + 64<<10
)

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message,omitempty"`
	ManualEntry bool   `json:"manual_entry,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorBadGateway:
		return http.StatusBadGateway
	case services.ErrorScanFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrUnknownCluster) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, statusFor(se.Code), errorBody{Error: string(se.Code), Message: se.Message, ManualEntry: se.ManualEntry})
		return
	}
	rt.Logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return services.NewInvalidError("request body too large")
		}
		return services.NewInvalidError("invalid json body")
	}
	return nil
}
