package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"studypack/internal/extract"
	"studypack/internal/llm"
	"studypack/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// statusForError maps pipeline failures onto HTTP statuses: unusable input is
// the client's fault, upstream trouble is a gateway problem, and missing rows
// are 404s.
func statusForError(err error) int {
	var fetchErr *extract.FetchError

	switch {
	case errors.Is(err, services.ErrPackNotFound), errors.Is(err, services.ErrCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, extract.ErrEmptyContent),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrTranscriptUnavailable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrUpstreamRejected),
		errors.Is(err, llm.ErrSchemaMismatch),
		errors.Is(err, llm.ErrPartialJoin):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
