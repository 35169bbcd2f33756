package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"pressadmin/internal/themes"
	"pressadmin/pkg/plugin"
	"pressadmin/pkg/theme"
)

// Pagination defaults for list endpoints.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is the envelope returned by list endpoints.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, plugin.ErrNotFound), errors.Is(err, themes.ErrUnknownTheme):
		return http.StatusNotFound
	case errors.Is(err, plugin.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, plugin.ErrMissingDependency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, theme.ErrResourceLoad):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

// paginate slices items by the page and limit query parameters.
func paginate[T any](r *http.Request, items []T) (Page[T], error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return Page[T]{}, err
	}
	limit, err := queryInt(r, "limit", DefaultPageLimit)
	if err != nil {
		return Page[T]{}, err
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	total := len(items)
	// Compare before multiplying so huge page numbers cannot overflow.
	start := total
	if page-1 <= total/limit {
		start = min((page-1)*limit, total)
	}
	end := min(start+limit, total)

	return Page[T]{
		Data:       append([]T{}, items[start:end]...),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, err := paginate(r, items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
