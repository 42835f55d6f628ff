package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("+911123456789"))
	assert.True(t, l.Allow("+911123456789"))
	assert.False(t, l.Allow("+911123456789"))
	assert.True(t, l.Allow("+919876543210"), "buckets are per number")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("+911123456789"))
	assert.False(t, l.Allow("+911123456789"))
}

func TestRateLimiterForgetsIdleNumbers(t *testing.T) {
	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(5)
	l.now = func() time.Time { return now }

	l.Allow("+911123456789")
	l.Allow("+919876543210")
	require.Equal(t, 2, l.Len())

	now = now.Add(limiterIdle + time.Minute)
	l.Allow("+918012345678")
	assert.Equal(t, 1, l.Len())
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	})
	rr := httptest.NewRecorder()
	TimeoutMiddleware(20*time.Millisecond)(slow).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.NotContains(t, rr.Body.String(), "late")

	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	})
	rr = httptest.NewRecorder()
	TimeoutMiddleware(time.Second)(fast).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestContextHelpers(t *testing.T) {
	ctx, cancel := WithQueryTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(QueryTimeout), deadline, time.Second)

	assert.Empty(t, Actor(ctx))
	assert.Equal(t, "resp-1", Actor(WithActor(ctx, "resp-1")))
}
