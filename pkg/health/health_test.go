package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

// driveUnhealthy runs the probe past the failure threshold.
func driveUnhealthy(p *probe) {
	for range failureThreshold {
		p.run(context.Background())
	}
}

func probeEndpoint(fn func(http.ResponseWriter, *http.Request), path string) (int, statusResponse) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	fn(w, req)

	var body statusResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, passingCheck())
		h.AddLivenessCheck("loop", time.Second, passingCheck())

		code, body := probeEndpoint(h.LiveEndpoint, "/livez")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("no checks registered", func(t *testing.T) {
		code, body := probeEndpoint(New().LiveEndpoint, "/livez")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("failing check past threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("storage", time.Second, failingCheck("connection refused"))
		driveUnhealthy(h.livenessProbes[0])

		code, body := probeEndpoint(h.LiveEndpoint, "/livez")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["storage"])
	})

	t.Run("failures below threshold stay healthy", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, failingCheck("temporary"))
		for range failureThreshold - 1 {
			h.livenessProbes[0].run(context.Background())
		}

		code, _ := probeEndpoint(h.LiveEndpoint, "/livez")
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready and passing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("redis", time.Second, passingCheck())
		h.SetReady(true)

		code, body := probeEndpoint(h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("manual gate closed", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("redis", time.Second, passingCheck())

		code, body := probeEndpoint(h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks, "_readiness")
	})

	t.Run("gate reclosed for shutdown drain", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		code, _ := probeEndpoint(h.ReadyEndpoint, "/readyz")
		require.Equal(t, http.StatusOK, code)

		h.SetReady(false)
		code, _ = probeEndpoint(h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("one of several failing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, passingCheck())
		h.AddReadinessCheck("redis", time.Second, failingCheck("pool exhausted"))
		h.SetReady(true)
		driveUnhealthy(h.readinessProbes[1])

		code, body := probeEndpoint(h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks, "redis")
		assert.NotContains(t, body.Checks, "postgres")
	})
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())

	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbeRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.livenessProbes[0]

	driveUnhealthy(p)
	assert.False(t, p.isHealthy())

	failing = false
	for range successThreshold {
		p.run(context.Background())
	}
	assert.True(t, p.isHealthy(), "probe recovers after consecutive passes")
}

func TestProbeLastError(t *testing.T) {
	h := New()
	h.AddLivenessCheck("storage", time.Second, failingCheck("timeout"))
	p := h.livenessProbes[0]

	assert.Nil(t, p.lastError())

	p.run(context.Background())
	assert.EqualError(t, p.lastError(), "timeout")
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())

	h.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failingCheck("err"))
	h.AddReadinessCheck("ready", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				probeEndpoint(h.LiveEndpoint, "/livez")
				probeEndpoint(h.ReadyEndpoint, "/readyz")
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
