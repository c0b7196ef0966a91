package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bz888/eyesy-bot/internal/completion"
	"github.com/bz888/eyesy-bot/internal/persist"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// classify maps an error to an HTTP status and a short kind tag.
func classify(err error) (int, string) {
	var perr *persist.ParseError
	var cerr *completion.Error
	switch {
	case errors.Is(err, session.ErrTurnInFlight):
		return http.StatusConflict, "busy"
	case errors.Is(err, session.ErrEmptyPrompt):
		return http.StatusBadRequest, "empty"
	case errors.As(err, &perr):
		return http.StatusBadRequest, "parse"
	case errors.Is(err, transcript.ErrMalformed):
		return http.StatusBadRequest, "malformed"
	case errors.Is(err, persist.ErrNotJSONFile):
		return http.StatusBadRequest, "extension"
	case errors.Is(err, session.ErrCancelled):
		return http.StatusConflict, "cancelled"
	case errors.As(err, &cerr):
		return http.StatusBadGateway, "completion"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
