package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/retry"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	statuses []int
	times    []time.Time
	headers  []http.Header
	bodies   [][]byte
}

func (r *recorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		var body json.RawMessage
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		r.times = append(r.times, time.Now())
		r.headers = append(r.headers, req.Header.Clone())
		r.bodies = append(r.bodies, body)

		status := http.StatusOK
		if n := len(r.times); n <= len(r.statuses) {
			status = r.statuses[n-1]
		}
		w.WriteHeader(status)
	}
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: 20 * time.Millisecond, Multiplier: 2}
}

func newTestDispatcher(url string) *Dispatcher {
	log := logger.New(logger.ERROR)
	return NewDispatcher(Config{
		Name:   "notification",
		URL:    url,
		Source: "stripe-webhook",
		Policy: testPolicy(),
	}, nil, metrics.NewRelayMetrics(prometheus.NewRegistry(), log), log)
}

func TestDispatchRetriesUntilSuccess(t *testing.T) {
	rec := &recorder{statuses: []int{500, 500, 200}}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	payload := domain.NotificationPayload{Name: "Jane Doe", Email: "jane@example.com", PaymentConfirmed: true}
	res, err := newTestDispatcher(srv.URL).Dispatch(context.Background(), payload, map[string]string{"X-Session-ID": "cs_1"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, 3, rec.calls())

	// waits grow between attempts
	first := rec.times[1].Sub(rec.times[0])
	second := rec.times[2].Sub(rec.times[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)

	for i, h := range rec.headers {
		assert.Equal(t, "application/json", h.Get("Content-Type"))
		assert.Equal(t, "stripe-webhook", h.Get("X-Source"))
		assert.Equal(t, "cs_1", h.Get("X-Session-ID"))
		assert.Equal(t, []string{"1", "2", "3"}[i], h.Get("X-Attempt"))
		assert.Equal(t, rec.headers[0].Get("X-Request-ID"), h.Get("X-Request-ID"))
	}

	// identical payload on every attempt
	assert.JSONEq(t, string(rec.bodies[0]), string(rec.bodies[2]))
}

func TestDispatchExhaustsAttempts(t *testing.T) {
	rec := &recorder{statuses: []int{502, 503, 500, 500, 500}}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	res, err := newTestDispatcher(srv.URL).Dispatch(context.Background(), map[string]string{"a": "b"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDispatchFailed)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 3, rec.calls(), "no attempts after exhaustion")
}

func TestDispatchSingleAttemptOnSuccess(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	res, err := newTestDispatcher(srv.URL).Dispatch(context.Background(), map[string]int{"n": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, rec.calls())
}

func TestDispatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := newTestDispatcher(url).Send(context.Background(), []byte(`{}`), nil)
	require.ErrorIs(t, err, domain.ErrDispatchFailed)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 0, res.StatusCode)
}
