package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/accounter/internal/adapter/http/dto"
	"github.com/iho/accounter/internal/infrastructure/config"
)

const holdBody = `{
	"plan": {
		"id": "order-1",
		"batches": [{
			"id": 1,
			"postings": [{
				"from": {"id": 1, "currency": "USD"},
				"to": {"id": 2, "currency": "USD"},
				"amount": "25",
				"currency": "USD"
			}]
		}]
	}
}`

func testConfig(backend string) *config.Config {
	return &config.Config{
		StoreInMemory:       true,
		LogBackend:          backend,
		LogPartitions:       4,
		PartitionsPerWorker: 2,
		PollTimeout:         10 * time.Millisecond,
		PollBatchSize:       64,
		SupervisorInterval:  10 * time.Millisecond,
		WorkerRestartDelay:  10 * time.Millisecond,
		RedisStreamPrefix:   "test:log",
		HTTPReadTimeout:     time.Second,
		HTTPWriteTimeout:    time.Second,
		HTTPIdleTimeout:     time.Second,
		HTTPShutdownTimeout: 5 * time.Second,
		IdempotencyTTL:      time.Minute,
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
	}
}

// startApp runs the app on a random port and returns its base URL.
func startApp(t *testing.T, cfg *config.Config) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Errorf("app did not stop")
		}
	})

	return "http://" + ln.Addr().String()
}

func post(t *testing.T, url, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// holdAndRead places a hold and waits for the debited balance to replay.
func holdAndRead(t *testing.T, base string, headers ...string) dto.BalanceResponse {
	t.Helper()

	resp := post(t, base+"/api/v1/holds", holdBody, headers...)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var clock dto.ClockResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clock))
	require.NotEmpty(t, clock.Clock)

	var balance dto.BalanceResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/accounts/1/balance?clock=%s", base, clock.Clock))
		require.NoError(t, err)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&balance))
		return true
	}, 5*time.Second, 10*time.Millisecond)

	return balance
}

func TestApp_MemoryBackendRoundTrip(t *testing.T) {
	base := startApp(t, testConfig(config.LogBackendMemory))

	resp, err := http.Get(base + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	balance := holdAndRead(t, base)
	assert.Equal(t, int64(1), balance.AccountID)
	assert.Equal(t, "-25", balance.MinAvailableAmount.String())
	assert.True(t, balance.Amount.IsZero())
}

func TestApp_RedisBackendWithIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(config.LogBackendRedis)
	cfg.RedisURL = "redis://" + mr.Addr()
	base := startApp(t, cfg)

	balance := holdAndRead(t, base, "Idempotency-Key", "hold-1")
	assert.Equal(t, "-25", balance.MinAvailableAmount.String())

	resp := post(t, base+"/api/v1/holds", holdBody, "Idempotency-Key", "hold-1")
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Idempotency-Replay"))
}

func TestNewApp_RedisBackendNeedsClient(t *testing.T) {
	_, err := newApp(context.Background(), testConfig(config.LogBackendRedis), zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestNewApp_UnknownBackend(t *testing.T) {
	_, err := newApp(context.Background(), testConfig("kafka"), zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "unknown log backend")
}
