package delivery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestEngine(cfg delivery.Config, sleeper *recordingSleeper) *delivery.Engine {
	logger := getTestLogger()
	client := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	engine := delivery.NewEngine(client, cfg, logger)
	if sleeper != nil {
		engine = engine.WithSleep(sleeper.Sleep)
	}
	return engine
}

func TestSend_Success(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	engine := newTestEngine(delivery.DefaultConfig(), &recordingSleeper{})

	result := engine.Send(context.Background(), delivery.Request{
		URL:     server.URL,
		Payload: []byte(`{"event":"entity_created"}`),
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, `{"ok":true}`, result.Body)
	assert.NoError(t, result.Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSend_RetriesUntilExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	engine := newTestEngine(delivery.Config{
		MaxRetries:   4,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
	}, sleeper)

	result := engine.Send(context.Background(), delivery.Request{URL: server.URL})

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	require.Error(t, result.Err)
	assert.True(t, delivery.IsRetryExhausted(result.Err))

	// Backoff doubles between attempts: 1s, 2s, 4s
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.delays)
}

func TestSend_NoRetryOn4xx(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	engine := newTestEngine(delivery.DefaultConfig(), sleeper)

	result := engine.Send(context.Background(), delivery.Request{URL: server.URL})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Equal(t, `{"error":"bad payload"}`, result.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Error(t, result.Err)
	assert.True(t, delivery.IsPermanent(result.Err))
	assert.Empty(t, sleeper.delays)
}

func TestSend_RecoversAfterRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	engine := newTestEngine(delivery.DefaultConfig(), sleeper)

	result := engine.Send(context.Background(), delivery.Request{URL: server.URL})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Len(t, sleeper.delays, 2)
}

func TestSend_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	engine := newTestEngine(delivery.Config{MaxRetries: 2}, sleeper)

	result := engine.Send(context.Background(), delivery.Request{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	require.Error(t, result.Err)
	assert.True(t, delivery.IsRetryExhausted(result.Err))
}

func TestCalculateBackoff(t *testing.T) {
	initial := time.Second
	maxDelay := time.Minute

	assert.Equal(t, time.Second, delivery.CalculateBackoff(initial, maxDelay, 1))
	assert.Equal(t, 2*time.Second, delivery.CalculateBackoff(initial, maxDelay, 2))
	assert.Equal(t, 4*time.Second, delivery.CalculateBackoff(initial, maxDelay, 3))
	assert.Equal(t, 32*time.Second, delivery.CalculateBackoff(initial, maxDelay, 6))

	// Capped at max delay
	assert.Equal(t, maxDelay, delivery.CalculateBackoff(initial, maxDelay, 20))

	// Degenerate attempt numbers fall back to the initial delay
	assert.Equal(t, initial, delivery.CalculateBackoff(initial, maxDelay, 0))
}

// errorDuration reads the running sum and count of the attempt duration
// histogram for the error outcome.
func errorDuration(t *testing.T) (float64, uint64) {
	t.Helper()

	obs, err := metrics.DeliveryDuration.GetMetricWithLabelValues("error")
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, obs.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleSum(), m.GetHistogram().GetSampleCount()
}

func TestSend_AttemptDurationExcludesBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sumBefore, countBefore := errorDuration(t)

	// A sleeper that really waits, so cumulative timing would be visible.
	backoff := 40 * time.Millisecond
	engine := newTestEngine(delivery.Config{
		MaxRetries:   3,
		InitialDelay: backoff,
		MaxDelay:     backoff,
	}, nil).WithSleep(func(ctx context.Context, d time.Duration) error {
		time.Sleep(d)
		return nil
	})

	result := engine.Send(context.Background(), delivery.Request{URL: server.URL})
	require.False(t, result.Success)
	require.Equal(t, 3, result.Attempts)

	sumAfter, countAfter := errorDuration(t)
	require.Equal(t, uint64(3), countAfter-countBefore)

	// Each observation covers only its own attempt against a local server.
	// Folding in the two 40ms sleeps would push the sum past 120ms.
	assert.Less(t, sumAfter-sumBefore, backoff.Seconds())
}
