package res

import (
	"encoding/json"
	"net/http"

	"github.com/Dhoini/workshop-relay/pkg/logger"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`                // message for the caller
	ErrorCode int    `json:"error_code,omitempty"` // machine-readable code
	Details   any    `json:"details,omitempty"`    // e.g. validation failures
}

// JsonResponse writes data as JSON with the given status.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse writes an error body and logs it.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *logger.Logger) {
	JsonResponse(w, errResponse, status)
	log.Warnw("Error response sent", "status", status, "error", errResponse.Error)
}
