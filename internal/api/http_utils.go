package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"music-action-service/internal/executor"
	"music-action-service/internal/program"
	"music-action-service/internal/schema"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

// problemError is implemented by the schema and program validation errors.
type problemError interface {
	error
	Problems() []string
}

func writeProblems(w http.ResponseWriter, err problemError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":    err.Error(),
		"problems": err.Problems(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalidArgs),
		errors.Is(err, schema.ErrUnknownAction),
		errors.Is(err, program.ErrInvalidProgram):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrOutOfRange), errors.Is(err, executor.ErrUnknownTrack):
		return http.StatusUnprocessableEntity
	case errors.Is(err, executor.ErrBackendUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeExecError(w http.ResponseWriter, err error) {
	var pe problemError
	if errors.As(err, &pe) {
		writeProblems(w, pe)
		return
	}
	status := statusFor(err)
	if status == http.StatusBadGateway {
		log.Printf("music-action-service: backend: %v", err)
	}
	writeError(w, status, err.Error())
}
