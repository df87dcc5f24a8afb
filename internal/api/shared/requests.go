package shared

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// MaxBodyBytes bounds the size of a decoded request body.
const MaxBodyBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Global validator instance for reuse. Field errors carry the JSON name of
// the field so messages match the request body.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into the given struct.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(body).Decode(v)
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
