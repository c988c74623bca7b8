package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"framegate/internal/datacache"
	"framegate/internal/upstream"
)

var ErrCharacterNotFound = errors.New("character not found")

type errorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error to the response the client sees. Fetch and parse
// failures are deliberately indistinguishable to clients.
func statusFor(err error) (int, errorBody) {
	switch {
	case errors.Is(err, datacache.ErrUnknownGame):
		return http.StatusNotFound, errorBody{http.StatusNotFound, "GAME_NOT_FOUND", "Game not found"}
	case errors.Is(err, ErrCharacterNotFound):
		return http.StatusNotFound, errorBody{http.StatusNotFound, "CHARACTER_NOT_FOUND", "Character not found in frame data"}
	case errors.Is(err, upstream.ErrFetchFailure), errors.Is(err, upstream.ErrInvalidPayload):
		return http.StatusBadGateway, errorBody{http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Upstream frame data is unavailable"}
	default:
		return http.StatusInternalServerError, errorBody{http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}
