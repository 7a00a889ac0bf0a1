package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/spikeycoins/tradeengine/xerrors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		subLogger.Error("encode response: %v", err)
	}
}

// writeError maps err's xerrors.Kind to an HTTP status and writes a
// JSON error body carrying the stable code a client can branch on.
func writeError(w http.ResponseWriter, err error) {
	kind := xerrors.KindOf(err)
	writeJSON(w, statusForKind(kind), errorBody{Code: string(kind), Message: err.Error()})
}

func statusForKind(kind xerrors.Kind) int {
	switch kind {
	case xerrors.Validation:
		return http.StatusBadRequest
	case xerrors.InsufficientFunds:
		return http.StatusUnprocessableEntity
	case xerrors.NotFound:
		return http.StatusNotFound
	case xerrors.Conflict:
		return http.StatusConflict
	case xerrors.Oracle:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
