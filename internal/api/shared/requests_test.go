package shared

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	tests := []struct {
		name    string
		body    string
		want    payload
		wantErr bool
	}{
		{name: "valid json", body: `{"name": "test", "age": 30}`, want: payload{Name: "test", Age: 30}},
		{name: "unknown fields ignored", body: `{"name": "test", "shelf": 4}`, want: payload{Name: "test"}},
		{name: "invalid json", body: `{"name": "test", "age": 30,}`, wantErr: true},
		{name: "wrong type", body: `{"age": "thirty"}`, wantErr: true},
		{name: "empty body", body: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tc.body))

			var got payload
			err := DecodeJSON(httptest.NewRecorder(), req, &got)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

type errorReader struct{}

func (errorReader) Read(p []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestDecodeJSONWithReadError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", errorReader{})

	var target struct{}
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &target))
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	big := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(big))

	var target struct {
		Name string `json:"name"`
	}
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &target))
}

type selfValidating struct {
	Name string
}

func (v *selfValidating) Validate() error {
	if v.Name == "invalid" {
		return errors.New("name is invalid")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	type tagged struct {
		RequestTo string `json:"request_to" validate:"required"`
		Note      string `json:"note,omitempty" validate:"max=5"`
	}

	tests := []struct {
		name      string
		req       interface{}
		wantField string
		wantErr   bool
	}{
		{name: "self validating ok", req: &selfValidating{Name: "ok"}},
		{name: "self validating fails", req: &selfValidating{Name: "invalid"}, wantErr: true},
		{name: "tags pass", req: &tagged{RequestTo: "x"}},
		{name: "missing required field", req: &tagged{}, wantErr: true, wantField: "request_to"},
		{name: "json name used for field", req: &tagged{RequestTo: "x", Note: "too long"}, wantErr: true, wantField: "note"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRequest(tc.req)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tc.wantField != "" {
				var verrs validator.ValidationErrors
				require.True(t, errors.As(err, &verrs))
				assert.Equal(t, tc.wantField, verrs[0].Field())
			}
		})
	}
}
