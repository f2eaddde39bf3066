package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/analysis-api/internal/domain"
)

// getPathRequestID extracts the task id from the URL path parameters.
// Ids are opaque; a malformed id simply resolves to no task.
func getPathRequestID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "requestId")
	if id == "" {
		return "", domain.NewValidationError("requestId", "is required", domain.ErrInvalidID)
	}
	return id, nil
}
