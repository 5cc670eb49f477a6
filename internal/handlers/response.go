package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/logging"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAlreadyExists, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a service error. Classified errors keep their
// message; anything else is logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)
	if status >= 500 {
		logging.Error("Request failed", map[string]interface{}{
			"op":     op,
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
	}

	var appErr *apperr.Error
	switch {
	case kind == apperr.KindTransient:
		writeError(w, status, "Service temporarily unavailable")
	case errors.As(err, &appErr) && status < 500:
		writeError(w, status, appErr.Message)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON body into dst and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email address"
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid ID", field)
	case "latitude":
		return "latitude must be between -90 and 90"
	case "longitude":
		return "longitude must be between -180 and 180"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s has an invalid length or value", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}
