package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"villa-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIdentity(t *testing.T) {
	var gotGuest, gotKey string
	var hadKey bool

	handler := Identity(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGuest, _ = utils.GetGuestIDFromContext(r.Context())
		gotKey, hadKey = utils.GetRequestKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/reservations", nil)
	req.Header.Set("X-Guest-Id", "guest-42")
	req.Header.Set("Idempotency-Key", "req-7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guest-42", gotGuest)
	assert.True(t, hadKey)
	assert.Equal(t, "req-7", gotKey)
}

func TestIdentity_RejectsAnonymous(t *testing.T) {
	called := false
	handler := Identity(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/reservations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestPollRate(t *testing.T) {
	handler := PollRate(time.Minute, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	poll := func(guestID, path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(utils.SetGuestContext(req.Context(), guestID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// First poll passes, the immediate repeat is throttled.
	assert.Equal(t, http.StatusOK, poll("guest-1", "/api/reservations/abc"))
	assert.Equal(t, http.StatusTooManyRequests, poll("guest-1", "/api/reservations/abc"))

	// Other guests and other reservations are unaffected.
	assert.Equal(t, http.StatusOK, poll("guest-2", "/api/reservations/abc"))
	assert.Equal(t, http.StatusOK, poll("guest-1", "/api/reservations/def"))
}
