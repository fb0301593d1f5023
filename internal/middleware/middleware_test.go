package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("hello"))
})

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	h := chimiddleware.RequestID(Logger(zerolog.New(&buf))(ok))

	req := httptest.NewRequest(http.MethodPost, "/api/posts/send", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/api/posts/send", line["path"])
	assert.EqualValues(t, 201, line["status"])
	assert.EqualValues(t, 5, line["bytes"])
	assert.Equal(t, "10.0.0.1", line["ip"])
	assert.NotEmpty(t, line["requestId"])
	assert.Equal(t, "info", line["level"])
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	h := Recoverer(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal_error","message":"An internal error occurred"}`, rr.Body.String())
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), "stack")
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 15*time.Minute, "slow down")
	rl.now = func() time.Time { return now }
	h := rl.Handler(ok)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusCreated, do("1.1.1.1").Code, "request %d", i+1)
	}

	rr := do("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "180", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate_limited","message":"slow down"}`, rr.Body.String())

	// other clients have their own bucket
	assert.Equal(t, http.StatusCreated, do("2.2.2.2").Code)

	// one token refills every window/max
	now = now.Add(3 * time.Minute)
	assert.Equal(t, http.StatusCreated, do("1.1.1.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do("1.1.1.1").Code)
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(100, 15*time.Minute, "")
	rl.now = func() time.Time { return now }

	rl.reserve("1.1.1.1")
	rl.reserve("2.2.2.2")
	assert.Len(t, rl.visitors, 2)

	now = now.Add(16 * time.Minute)
	rl.reserve("3.3.3.3")
	assert.Len(t, rl.visitors, 1)
}
