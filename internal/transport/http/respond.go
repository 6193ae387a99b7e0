// Package httptransport is the thin HTTP layer. Handlers decode, validate,
// delegate to domain services, and encode; business rules stay out of here.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	dErrors "aegis/pkg/domain-errors"
)

var validate = validator.New()

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError translates domain errors into the shared JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   string(code),
		Message: dErrors.MessageOf(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode parses and validates a JSON request body.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "request validation failed")
	}
	return nil
}
