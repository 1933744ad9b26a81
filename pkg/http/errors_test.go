package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteInvalidCredentials_StableBody(t *testing.T) {
	first := httptest.NewRecorder()
	second := httptest.NewRecorder()

	WriteInvalidCredentials(first)
	WriteInvalidCredentials(second)

	assert.Equal(t, http.StatusUnauthorized, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Error)
	assert.Zero(t, resp.RetryAfterSeconds)
}

func TestWriteAccountLocked_RoundsUp(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAccountLocked(rec, 90*time.Second+500*time.Millisecond)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ACCOUNT_LOCKED", resp.Error)
	assert.Equal(t, 91, resp.RetryAfterSeconds)
}

func TestWriteAccountLocked_MinimumOneSecond(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAccountLocked(rec, 10*time.Millisecond)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RetryAfterSeconds)
}

func TestWriteSessionExpired(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSessionExpired(rec)

	assert.Equal(t, http.StatusGone, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SESSION_EXPIRED", resp.Error)
}

func TestWriteInvalidCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInvalidCode(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CODE")
}

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"socket only", "10.0.0.1:4321", nil, "10.0.0.1"},
		{"forwarded for", "10.0.0.1:4321", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:4321", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ExtractClientIP(req))
		})
	}
}
