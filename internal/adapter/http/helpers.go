package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/logger"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeErrorCode(w, r, http.StatusRequestEntityTooLarge, domain.CodeInvalidInput, "request body too large")
		} else {
			writeErrorCode(w, r, http.StatusBadRequest, domain.CodeInvalidInput, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

// errorBody is the uniform error envelope carried on every non-success
// response.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code domain.Code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:      string(code),
		Message:   message,
		RequestID: logger.RequestID(r.Context()),
		Retryable: code.Retryable(),
	}})
}

// writeDomainError maps a coded domain error onto its HTTP status and the
// uniform envelope. Uncoded errors are logged and reported as internal
// without leaking their message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	message := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		message = de.Message
	}

	status := statusOf(code)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "error", err)
		message = "internal server error"
	}
	writeErrorCode(w, r, status, code, message)
}

func statusOf(code domain.Code) int {
	switch code {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeRunTerminated:
		return http.StatusConflict
	case domain.CodeCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
