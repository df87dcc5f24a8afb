package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/service"
)

const queryUnexpected = "Query value unexpected."

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, service.E(service.KindValidation, "api.path",
			fmt.Sprintf("Missing %s in path.", paramName), domain.ErrInvalidID)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, service.E(service.KindValidation, "api.path",
			fmt.Sprintf("Invalid %s in path.", paramName), fmt.Errorf("%w: %v", domain.ErrInvalidID, err))
	}
	return id, nil
}

// checkQueryKeys rejects query parameters outside allowed.
func checkQueryKeys(r *http.Request, allowed ...string) error {
	for key := range r.URL.Query() {
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			return service.E(service.KindValidation, "api.query", queryUnexpected,
				fmt.Errorf("%w: unknown query parameter %q", domain.ErrValidation, key))
		}
	}
	return nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, service.E(service.KindValidation, "api.query", queryUnexpected,
			fmt.Errorf("%w: %s: %v", domain.ErrValidation, key, err))
	}
	return &v, nil
}

// queryInt parses an optional integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, service.E(service.KindValidation, "api.query", queryUnexpected,
			fmt.Errorf("%w: %s: %v", domain.ErrValidation, key, err))
	}
	return v, nil
}

// decodeAndValidate decodes the JSON body into v and validates it, writing
// a 400 response on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format.", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
