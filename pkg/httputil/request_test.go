package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{name: "valid JSON", body: `{"name": "test"}`},
		{name: "invalid JSON", body: `{invalid}`, wantError: "invalid JSON"},
		{name: "empty body", body: ``, wantError: "invalid JSON: empty body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test", dest["name"])
		})
	}
}

func TestParseJSON_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name": "`+strings.Repeat("a", 100)+`"}`))
	req.Body = http.MaxBytesReader(w, req.Body, 16)

	var dest map[string]string
	err := ParseJSON(req, &dest)
	require.Error(t, err)
	assert.Equal(t, "request body exceeds 16 bytes", err.Error())
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{`))

	var dest map[string]string
	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]string
		want     int64
		wantCode int
	}{
		{name: "valid", vars: map[string]string{"id": "42"}, want: 42},
		{name: "missing", vars: map[string]string{}, wantCode: http.StatusNotFound},
		{name: "not a number", vars: map[string]string{"id": "abc"}, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)
			w := httptest.NewRecorder()

			got, ok := ParsePathInt64OrNotFound(w, req, "id")

			if tt.wantCode != 0 {
				assert.False(t, ok)
				assert.Equal(t, tt.wantCode, w.Code)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryBool(t *testing.T) {
	tests := []struct {
		query   string
		want    bool
		wantErr bool
	}{
		{"", false, false},
		{"?assigned_only=1", true, false},
		{"?assigned_only=0", false, false},
		{"?assigned_only=true", true, false},
		{"?assigned_only=maybe", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			got, err := ParseQueryBool(req, "assigned_only", false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryIDs(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    []int64
		wantErr bool
	}{
		{name: "absent", query: "", want: nil},
		{name: "empty value", query: "?tags=", want: nil},
		{name: "single", query: "?tags=7", want: []int64{7}},
		{name: "several with spaces", query: "?tags=1,%202,3", want: []int64{1, 2, 3}},
		{name: "non integer", query: "?tags=1,abc", wantErr: true},
		{name: "trailing comma", query: "?tags=1,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			got, err := ParseQueryIDs(req, "tags")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
