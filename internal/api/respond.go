package api

import (
	"encoding/json"
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// writeJSON sends a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain failures to HTTP statuses. Anything that is not
// a typed Failure is a 500.
func writeError(w http.ResponseWriter, err error) {
	if f, ok := types.AsFailure(err); ok {
		writeJSON(w, failureStatus(f.Kind), f)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func failureStatus(kind types.FailureKind) int {
	switch kind {
	case types.FailValidation, types.FailInvalidTransition:
		return http.StatusBadRequest
	case types.FailApprovalRequired:
		return http.StatusForbidden
	case types.FailNotFound:
		return http.StatusNotFound
	case types.FailInUse, types.FailConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody parses a JSON request body into dst
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}
