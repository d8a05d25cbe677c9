package req

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/Dhoini/workshop-relay/pkg/res"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode decodes JSON from body into a value of type T.
func Decode[T any](body io.Reader) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid validates payload using its `validate` struct tags. Field failures
// come back as domain.ValidationErrors.
func IsValid[T any](payload T) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var out domain.ValidationErrors
	for _, fe := range verrs {
		out.Add(fe.Field(), fe.Tag())
	}
	if !out.HasErrors() {
		return nil
	}
	return out
}

// FieldErrors flattens validation errors into field -> tag pairs for responses.
func FieldErrors(err error) map[string]string {
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field] = fe.Message
	}
	return out
}

// HandleBody decodes and validates the request body. On failure the error
// response has already been written.
func HandleBody[T any](w http.ResponseWriter, r *http.Request, log *logger.Logger) (*T, error) {
	body, err := Decode[T](r.Body)
	if err != nil {
		log.Warnw("Failed to decode request body", "error", err, "path", r.URL.Path)
		res.JsonResponse(w, res.ErrorResponse{Error: "Invalid JSON payload"}, http.StatusBadRequest)
		return nil, err
	}

	if err := IsValid(body); err != nil {
		var verrs domain.ValidationErrors
		errors.As(err, &verrs)
		log.Warnw("Request body failed validation", "fields", verrs.Fields(), "path", r.URL.Path)
		res.JsonResponse(w, res.ErrorResponse{
			Error:   "Missing or invalid fields",
			Details: FieldErrors(err),
		}, http.StatusBadRequest)
		return nil, err
	}
	return &body, nil
}
