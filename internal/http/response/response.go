// Package response writes JSON bodies and {"detail": ...} errors for handlers
// that stream bytes outside the huma API.
package response

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/errors"
)

// ErrorBody is the error shape every endpoint returns.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, data); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Error writes {"detail": message} with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Detail: message}, logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, message, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, message, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, message, logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, message, logger)
}

// StatusAndDetail maps an error to the status code and detail it is reported
// with. Coded errors keep their message; a downstream HTTP failure keeps the
// downstream status and detail; anything else is a 500.
func StatusAndDetail(err error) (int, string) {
	var coded *errors.Error
	if errors.As(err, &coded) {
		return coded.HTTPStatus(), coded.Message
	}

	var te *client.TransportError
	if errors.As(err, &te) && te.Status != 0 {
		detail := te.Detail
		if detail == "" {
			detail = http.StatusText(te.Status)
		}
		return te.Status, detail
	}
	return http.StatusInternalServerError, "Internal server error"
}

// HandleError writes the response for err. Server-side failures are logged.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, detail := StatusAndDetail(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "error", err)
	}
	Error(w, status, detail, logger)
}
