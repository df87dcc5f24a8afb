package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/service"
)

const internalErrorMessage = "Internal server error occured."

// MapErrorToStatusCode maps service errors to HTTP status codes by kind.
// Errors without a kind are internal.
func MapErrorToStatusCode(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		// Upstream and internal failures look the same to clients.
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the client-safe message of a service error.
// Internal and upstream failures never expose their details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return internalErrorMessage
	}
	switch service.KindOf(err) {
	case service.KindInternal, service.KindUpstream:
		return internalErrorMessage
	}
	if msg, ok := service.MessageOf(err); ok {
		return msg
	}
	return internalErrorMessage
}

// HandleAPIError writes the error response for err and logs the redacted
// details. Conflicts are logged at WARN since they usually mean a lost race.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)

	var opts []shared.ResponseOption
	if status == http.StatusConflict {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err, opts...)
}

// SanitizeValidationError turns a request validation failure into a
// client-facing message naming the offending body field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" || fe.Tag() == "required_without" {
			return fmt.Sprintf("Missing %s in request body.", fe.Field())
		}
		return fmt.Sprintf("Invalid %s: %s.", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Invalid request body."
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "must be a valid id"
	default:
		return "validation failed"
	}
}
