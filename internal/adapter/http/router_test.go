package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/accounter/internal/adapter/eventlog/memlog"
	"github.com/iho/accounter/internal/adapter/http/dto"
	"github.com/iho/accounter/internal/adapter/http/handler"
	apimiddleware "github.com/iho/accounter/internal/adapter/http/middleware"
	badgerrepo "github.com/iho/accounter/internal/adapter/repository/badger"
	infrabadger "github.com/iho/accounter/internal/infrastructure/badger"
	"github.com/iho/accounter/internal/infrastructure/consumer"
	"github.com/iho/accounter/internal/usecase"
	"github.com/iho/accounter/internal/usecase/mocks"
)

const testPartitions = 4

type testServer struct {
	router  http.Handler
	log     *memlog.Log
	offsets *badgerrepo.OffsetRepository
	handler usecase.EntryHandler
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()

	db, err := infrabadger.Open(infrabadger.Config{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = infrabadger.Close(context.Background(), db) })

	balances := badgerrepo.NewBalanceRepository(db)
	markers := badgerrepo.NewPlanMarkerRepository(db)
	offsets := badgerrepo.NewOffsetRepository(db)
	log := memlog.New(testPartitions, 0)

	registration := usecase.NewRegistrationUseCase(log, balances, markers, badgerrepo.NewULIDGenerator(), zerolog.Nop(), nil)
	gate := usecase.NewConsistencyGate(offsets, testPartitions, nil)
	ledger := usecase.NewLedgerUseCase(registration, gate, balances, markers, offsets, nil)

	cfg := RouterConfig{
		LedgerHandler:  handler.NewLedgerHandler(ledger),
		AccountHandler: handler.NewAccountHandler(ledger),
		AdminHandler:   handler.NewAdminHandler(ledger),
		HealthHandler: handler.NewHealthHandler(handler.HealthCheck{
			Name: "store",
			Check: func(ctx context.Context) error {
				return nil
			},
		}),
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{
		router:  NewRouter(cfg),
		log:     log,
		offsets: offsets,
		handler: usecase.NewBalanceUseCase(badgerrepo.NewTxManager(db), balances, markers, badgerrepo.NewRetrier(zerolog.Nop(), nil), zerolog.Nop(), nil),
	}
}

func (s *testServer) startConsumers(t *testing.T) {
	t.Helper()
	m := consumer.NewManager(consumer.Config{
		Source:              s.log,
		Offsets:             s.offsets,
		Handler:             s.handler,
		Logger:              zerolog.Nop(),
		Partitions:          testPartitions,
		PartitionsPerWorker: 2,
		PollTimeout:         10 * time.Millisecond,
		RestartDelay:        5 * time.Millisecond,
		SupervisorInterval:  5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

const holdBody = `{
	"plan": {
		"id": "order-1",
		"batches": [{
			"id": 1,
			"postings": [{
				"from": {"id": 1, "currency": "USD"},
				"to": {"id": 2, "currency": "USD"},
				"amount": "100",
				"currency": "USD"
			}]
		}]
	}
}`

const finalizeBody = `{
	"batches": [{
		"id": 1,
		"postings": [{
			"from": {"id": 1, "currency": "USD"},
			"to": {"id": 2, "currency": "USD"},
			"amount": "100",
			"currency": "USD"
		}]
	}],
	"clock": %q
}`

func clockOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ClockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Clock)
	return resp.Clock
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", "").Code)
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	s := newTestServer(t)

	routes := map[string]bool{}
	err := chi.Walk(s.router.(chi.Routes), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+strings.TrimSuffix(route, "/")] = true
		return nil
	})
	require.NoError(t, err)

	for _, want := range []string{
		"POST /api/v1/holds",
		"POST /api/v1/plans/{id}/commit",
		"POST /api/v1/plans/{id}/rollback",
		"GET /api/v1/accounts/{id}",
		"GET /api/v1/accounts/{id}/balance",
		"GET /api/v1/admin/balances",
		"GET /api/v1/admin/offsets",
		"GET /api/v1/admin/plans/{id}",
		"GET /api/v1/admin/consistency",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = apimiddleware.NewRateLimiter(1, 1, nil)
	})

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/health", "").Code)
}

func TestNewRouter_RejectsNonJSONBodies(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/holds", strings.NewReader(holdBody))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestNewRouter_HoldThenReadIsGated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/holds", holdBody)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	clock := clockOf(t, rec)

	// Nothing is consuming yet.
	rec = s.do(http.MethodGet, "/api/v1/accounts/1/balance?clock="+clock, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = s.do(http.MethodGet, "/api/v1/accounts/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRouter_HoldCommitEndToEnd(t *testing.T) {
	s := newTestServer(t)
	s.startConsumers(t)

	rec := s.do(http.MethodPost, "/api/v1/holds", holdBody)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	holdClock := clockOf(t, rec)

	var commitClock string
	require.Eventually(t, func() bool {
		rec = s.do(http.MethodPost, "/api/v1/plans/order-1/commit", fmt.Sprintf(finalizeBody, holdClock))
		if rec.Code == http.StatusConflict {
			return false
		}
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		commitClock = clockOf(t, rec)
		return true
	}, 3*time.Second, 5*time.Millisecond)

	var balance dto.BalanceResponse
	require.Eventually(t, func() bool {
		rec = s.do(http.MethodGet, "/api/v1/accounts/2/balance?clock="+commitClock, "")
		if rec.Code == http.StatusConflict {
			return false
		}
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
		return true
	}, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, "100", balance.Amount.String())
	assert.Equal(t, "100", balance.MinAvailableAmount.String())
	assert.Equal(t, "100", balance.MaxAvailableAmount.String())

	require.Eventually(t, func() bool {
		rec = s.do(http.MethodGet, "/api/v1/accounts/1/balance?clock="+commitClock, "")
		return rec.Code == http.StatusOK
	}, 3*time.Second, 5*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/v1/admin/plans/order-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var markers dto.ListPlanMarkersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &markers))
	assert.Len(t, markers.Markers, 4)

	rec = s.do(http.MethodGet, "/api/v1/admin/consistency", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var consistency dto.ConsistencyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consistency))
	assert.True(t, consistency.Consistent)
}

func TestNewRouter_IdempotentHoldIsPublishedOnce(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	})

	first := s.do(http.MethodPost, "/api/v1/holds", holdBody, apimiddleware.IdempotencyKeyHeader, "k1")
	second := s.do(http.MethodPost, "/api/v1/holds", holdBody, apimiddleware.IdempotencyKeyHeader, "k1")

	require.Equal(t, http.StatusAccepted, first.Code)
	require.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, "true", second.Header().Get(apimiddleware.IdempotencyReplayHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())

	var total int64
	for p := int32(0); p < testPartitions; p++ {
		total += s.log.Len(p)
	}
	assert.Equal(t, int64(2), total)
}

func TestNewRouter_InvalidPlanIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	body := strings.Replace(holdBody, `"to": {"id": 2`, `"to": {"id": 1`, 1)
	rec := s.do(http.MethodPost, "/api/v1/holds", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	for p := int32(0); p < testPartitions; p++ {
		assert.Zero(t, s.log.Len(p))
	}
}
