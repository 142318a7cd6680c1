package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/starford/ofmock/internal/apperr"
)

const contentTypeMsgpack = "application/msgpack"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func wantsMsgpack(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, contentTypeMsgpack) || strings.Contains(accept, "application/x-msgpack")
}

// respond writes v as msgpack when the client asks for it and as JSON otherwise.
// Struct fields keep their json names in both encodings.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsMsgpack(r) {
		writeJSON(w, status, v)
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		slog.Error("msgpack encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto status codes. Unexpected errors are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, apperr.ErrMalformedSchema),
		errors.Is(err, apperr.ErrUnsupportedPattern),
		errors.Is(err, apperr.ErrIncompatibleConstraints):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		respond(w, r, status, errorBody("internal error"))
		return
	}
	respond(w, r, status, errorBody(err.Error()))
}
