package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
	"github.com/lMazer/pocket-finance-dashboard/pkg/logger"
	"github.com/lMazer/pocket-finance-dashboard/pkg/validator"
)

// ErrorBody is the uniform error payload returned by every endpoint.
type ErrorBody struct {
	Timestamp time.Time         `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Path      string            `json:"path"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteStatus writes the uniform error body for status with the given message.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, status, newErrorBody(r, status, message))
}

// WriteError maps err to a status code and writes the uniform error body.
// AppError messages are passed through; anything unrecognised becomes a
// generic 500 and is logged with the request-scoped logger when available.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(r, l, err)
		}
		WriteStatus(w, r, appErr.Status, appErr.Message)
		return
	}

	status := apperrors.HTTPStatus(err)
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		message = "unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		message = "forbidden"
	case errors.Is(err, apperrors.ErrTooManyRequests):
		message = "too many requests"
	}

	if status == http.StatusInternalServerError {
		logInternal(r, l, err)
	}

	WriteStatus(w, r, status, message)
}

// WriteValidationError writes a 400 response. Field-level messages from the
// validator package are included under "fields". An AppError contributes
// only its client message.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	body := newErrorBody(r, http.StatusBadRequest, err.Error())

	var valErr *validator.ValidationError
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &valErr):
		body.Message = "request validation failed"
		body.Fields = valErr.Fields()
	case errors.As(err, &appErr):
		body.Message = appErr.Message
	}

	WriteJSON(w, http.StatusBadRequest, body)
}

func newErrorBody(r *http.Request, status int, message string) ErrorBody {
	return ErrorBody{
		Timestamp: now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}
}

func logInternal(r *http.Request, l *slog.Logger, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}
