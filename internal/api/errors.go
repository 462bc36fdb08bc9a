package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/http/response"
)

// APIError is the error body of every endpoint: {"detail": "..."}.
// Request validation failures also list the offending fields.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status int
	Detail string              `json:"detail" doc:"Human-readable error message"`
	Errors []*huma.ErrorDetail `json:"errors,omitempty" doc:"Request validation failures"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Detail
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

var registerOnce sync.Once

// RegisterErrorHandler makes huma report errors as APIError. Coded domain
// errors and downstream HTTP failures keep their status and message.
func RegisterErrorHandler() {
	registerOnce.Do(func() {
		huma.NewError = newAPIError
	})
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	apiErr := &APIError{status: status, Detail: message}
	for _, err := range errs {
		if err == nil {
			continue
		}
		if isMapped(err) {
			apiErr.status, apiErr.Detail = response.StatusAndDetail(err)
			apiErr.Errors = nil
			return apiErr
		}
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			apiErr.Errors = append(apiErr.Errors, detail)
		}
	}
	return apiErr
}

// isMapped reports whether err carries its own status.
func isMapped(err error) bool {
	var coded *errors.Error
	if errors.As(err, &coded) {
		return true
	}
	var te *client.TransportError
	return errors.As(err, &te) && te.Status != 0
}

// register adds an operation to api. Handler errors that are not already a
// huma.StatusError go through huma.NewError so their status is kept.
func register[I, O any](api huma.API, op huma.Operation, handler func(context.Context, *I) (*O, error)) {
	huma.Register(api, op, func(ctx context.Context, input *I) (*O, error) {
		out, err := handler(ctx, input)
		if err != nil {
			var se huma.StatusError
			if !errors.As(err, &se) {
				return nil, huma.NewError(http.StatusInternalServerError, "Internal server error", err)
			}
			return nil, err
		}
		return out, nil
	})
}
