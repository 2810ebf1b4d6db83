package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxPage      = math.MaxInt32 / maxLimit

	// Profile images arrive inline as data URIs.
	maxBodyBytes = 4 << 20
)

type contextKey string

const contextUserKey contextKey = "user"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the paginated list response payload.
type ListResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func newListResponse[T any](items []T, total, page, limit int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// parsePagination never fails: a bad page becomes 1 and a bad limit becomes
// the default, clamped to [1, maxLimit]. Page is capped at maxPage so the
// offset always fits a Postgres integer.
func parsePagination(r *http.Request) (page, limit, offset int) {
	query := r.URL.Query()

	page, err := strconv.Atoi(strings.TrimSpace(query.Get("page")))
	if err != nil || page < 1 {
		page = defaultPage
	}
	page = min(page, maxPage)

	limit, err = strconv.Atoi(strings.TrimSpace(query.Get("limit")))
	if err != nil || limit == 0 {
		limit = defaultLimit
	}
	limit = max(1, min(limit, maxLimit))

	return page, limit, (page - 1) * limit
}

// errorWriter turns service errors into HTTP responses for one resource.
type errorWriter struct {
	log       logging.Logger
	resource  string
	conflict  string
	operation string
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	var verr *rules.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, rules.ErrLastAdmin):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, e.conflict)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, e.resource+" not found")
	default:
		e.log.Error(r.Context(), "request failed",
			"operation", e.operation,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (e errorWriter) during(operation string) errorWriter {
	e.operation = operation
	return e
}
