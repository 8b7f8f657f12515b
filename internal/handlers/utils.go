package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/quoteshare/apiserver/internal/services"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error payload returned by every endpoint.
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse is a plain acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func withIdentity(ctx context.Context, identity services.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (services.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(services.Identity)
	if !ok || identity.ID < 1 {
		return services.Identity{}, false
	}
	return identity, true
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// errorStatus maps service errors to HTTP statuses. Auth and not-found
// failures map differently on login than on protected resources.
type errorStatus struct {
	auth     int
	notFound int
}

var (
	loginStatuses    = errorStatus{auth: http.StatusBadRequest, notFound: http.StatusBadRequest}
	resourceStatuses = errorStatus{auth: http.StatusUnauthorized, notFound: http.StatusNotFound}
)

// writeServiceError classifies err and writes the matching response. Errors
// outside the service taxonomy are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, statuses errorStatus, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, publicMessage(err))
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusBadRequest, publicMessage(err))
	case errors.Is(err, services.ErrAuth):
		writeError(w, statuses.auth, publicMessage(err))
	case errors.Is(err, services.ErrNotFound):
		writeError(w, statuses.notFound, publicMessage(err))
	default:
		logger.ErrorContext(r.Context(), fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// publicMessage strips the sentinel prefix, leaving the detail written by
// the service ("validation failed: content and author are required" becomes
// "content and author are required").
func publicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{services.ErrValidation, services.ErrConflict, services.ErrAuth, services.ErrNotFound} {
		prefix := sentinel.Error() + ": "
		if idx := strings.LastIndex(msg, prefix); idx >= 0 {
			return msg[idx+len(prefix):]
		}
	}
	return msg
}

// parsePagination reads page and pageSize. Missing values are left at zero
// for the service to default; non-numeric values are rejected.
func parsePagination(r *http.Request) (page, pageSize int, err error) {
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("invalid page")
		}
	}

	rawSize := strings.TrimSpace(query.Get("pageSize"))
	if rawSize == "" {
		rawSize = strings.TrimSpace(query.Get("limit"))
	}
	if rawSize != "" {
		pageSize, err = strconv.Atoi(rawSize)
		if err != nil {
			return 0, 0, errors.New("invalid pageSize")
		}
	}
	return page, pageSize, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
