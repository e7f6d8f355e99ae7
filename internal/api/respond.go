package api

import (
	"encoding/json"
	"net/http"

	"github.com/vaultik/capsulechain/internal/fault"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class"`
}

// faultStatus maps the error taxonomy onto HTTP statuses: validation 400,
// authorization 403, not-found 404, stale/coordination 409, anything else 500.
func faultStatus(err error) int {
	switch {
	case fault.IsValidation(err):
		return http.StatusBadRequest
	case fault.IsAuthorization(err):
		return http.StatusForbidden
	case fault.IsNotFound(err):
		return http.StatusNotFound
	case fault.IsProcess(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func faultClass(err error) string {
	switch {
	case fault.IsValidation(err):
		return "validation"
	case fault.IsAuthorization(err):
		return "authorization"
	case fault.IsNotFound(err):
		return "not_found"
	case fault.IsProcess(err):
		return "process"
	}
	return "internal"
}

func respondFault(w http.ResponseWriter, err error) {
	respondJSON(w, faultStatus(err), errorResponse{Error: err.Error(), Class: faultClass(err)})
}
