package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"trackmybus/internal/feed"
	"trackmybus/internal/store"
)

// Problem represents an RFC7807 problem details response body. Errors carries
// per-field messages for rejected submissions.
type Problem struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *feed.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Problem{
			Type:     "about:blank",
			Title:    "Invalid update",
			Status:   http.StatusBadRequest,
			Instance: r.URL.Path,
			Errors:   verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrAlreadyVerified):
		writeProblem(w, http.StatusConflict, "Already verified", err.Error(), r.URL.Path)
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), r.URL.Path)
	}
}
