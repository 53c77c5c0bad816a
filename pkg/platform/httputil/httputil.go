// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

const maxJSONBody = 1 << 20

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a coded domain error onto a status code and error envelope.
// Internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.Message(err)
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeLocked:
		return http.StatusLocked
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Validatable is implemented by request bodies that check their own fields.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request bodies that trim or lowercase input before validation.
type Normalizable interface {
	Normalize()
}

// DecodeJSON decodes a bounded JSON body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.New(dErrors.CodeBadRequest, "invalid json payload")
	}
	return nil
}

// DecodeAndPrepare decodes, normalizes and validates a request body. On failure it
// writes the error response and returns false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := DecodeJSON(r, &req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "invalid request",
				"error", err,
				"request_id", requestID,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}

// PageMeta mirrors the pagination block of list responses.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// ListResponse is the envelope for paginated lists.
type ListResponse[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NewListResponse converts a domain page with a per-item mapper.
func NewListResponse[S, T any](page id.Page[S], mapFn func(S) T) ListResponse[T] {
	data := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		data = append(data, mapFn(item))
	}
	return ListResponse[T]{
		Data: data,
		Meta: PageMeta{
			CurrentPage: page.Request.Page,
			LastPage:    page.LastPage(),
			PerPage:     page.Request.PerPage,
			Total:       page.Total,
		},
	}
}

// PageRequestFrom reads page and per_page query parameters.
func PageRequestFrom(r *http.Request) id.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return id.NewPageRequest(page, perPage)
}

// Limiter builds middleware enforcing the named rate limit policies.
type Limiter interface {
	Limit(policies ...string) func(http.Handler) http.Handler
}

// NoLimit is a Limiter that lets every request through.
type NoLimit struct{}

// Limit returns a pass-through middleware for every policy.
func (NoLimit) Limit(...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}
