package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"success"}`, w.Body.String())
}

func TestWriteErrorHelpers(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter)
		wantCode int
		wantMsg  string
	}{
		{"WriteError", func(w http.ResponseWriter) { WriteError(w, http.StatusBadRequest, errors.New("test error")) }, http.StatusBadRequest, "test error"},
		{"WriteErrorMessage", func(w http.ResponseWriter) { WriteErrorMessage(w, http.StatusConflict, "taken") }, http.StatusConflict, "taken"},
		{"WriteNotFound", WriteNotFound, http.StatusNotFound, "Not found."},
		{"WriteInternalError", WriteInternalError, http.StatusInternalServerError, "internal server error"},
		{"WriteBadRequest", func(w http.ResponseWriter) { WriteBadRequest(w, "bad") }, http.StatusBadRequest, "bad"},
		{"WriteForbidden", func(w http.ResponseWriter) { WriteForbidden(w, "CSRF Failed: CSRF cookie not set.") }, http.StatusForbidden, "CSRF Failed: CSRF cookie not set."},
		{"WriteTooManyRequests", func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") }, http.StatusTooManyRequests, "slow down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, w).Error)
		})
	}
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteValidationError(w, "invalid input", map[string]string{"password": "too short"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "invalid input", body.Error)
	assert.Equal(t, "too short", body.Details["password"])
}

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	WriteUnauthorized(w, "Token", "Invalid token.")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Invalid token.", decodeError(t, w).Error)

	w = httptest.NewRecorder()
	WriteUnauthorized(w, "", "nope")
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
}

func TestWriteSuccessAndCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]int{"id": 123}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":123}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteSuccess(w, []int{1}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}
