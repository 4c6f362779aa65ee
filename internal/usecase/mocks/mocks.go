package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// MockBalanceRepository is a mock implementation of BalanceRepository.
type MockBalanceRepository struct {
	GetFunc          func(ctx context.Context, accountID int64) (*domain.Balance, error)
	GetForUpdateFunc func(ctx context.Context, tx usecase.Transaction, accountID int64) (*domain.Balance, error)
	PutFunc          func(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error
	ListFunc         func(ctx context.Context) ([]*domain.Balance, error)
	ClaimFunc        func(ctx context.Context, currencies map[int64]string) error
}

func NewMockBalanceRepository() *MockBalanceRepository {
	return &MockBalanceRepository{}
}

func (m *MockBalanceRepository) Get(ctx context.Context, accountID int64) (*domain.Balance, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, accountID)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockBalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, accountID int64) (*domain.Balance, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, tx, accountID)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockBalanceRepository) Put(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, tx, balance)
	}
	return nil
}

func (m *MockBalanceRepository) List(ctx context.Context) ([]*domain.Balance, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockBalanceRepository) ClaimCurrencies(ctx context.Context, currencies map[int64]string) error {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, currencies)
	}
	return nil
}

// MockPlanMarkerRepository is a mock implementation of PlanMarkerRepository.
type MockPlanMarkerRepository struct {
	GetFunc          func(ctx context.Context, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error)
	GetForUpdateFunc func(ctx context.Context, tx usecase.Transaction, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error)
	PutFunc          func(ctx context.Context, tx usecase.Transaction, marker *domain.PlanMarker) error
	ListByPlanFunc   func(ctx context.Context, planID string) ([]*domain.PlanMarker, error)
}

func NewMockPlanMarkerRepository() *MockPlanMarkerRepository {
	return &MockPlanMarkerRepository{}
}

func (m *MockPlanMarkerRepository) Get(ctx context.Context, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, planID, op, accountID)
	}
	return nil, domain.ErrPlanMarkerNotFound
}

func (m *MockPlanMarkerRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, tx, planID, op, accountID)
	}
	return nil, domain.ErrPlanMarkerNotFound
}

func (m *MockPlanMarkerRepository) Put(ctx context.Context, tx usecase.Transaction, marker *domain.PlanMarker) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, tx, marker)
	}
	return nil
}

func (m *MockPlanMarkerRepository) ListByPlan(ctx context.Context, planID string) ([]*domain.PlanMarker, error) {
	if m.ListByPlanFunc != nil {
		return m.ListByPlanFunc(ctx, planID)
	}
	return nil, nil
}

// MockOffsetRepository keeps offsets in a map unless overridden.
type MockOffsetRepository struct {
	mu      sync.Mutex
	Offsets map[int32]int64

	LoadFunc func(ctx context.Context, partitions []int32) (map[int32]int64, error)
	SaveFunc func(ctx context.Context, offsets map[int32]int64) error
}

func NewMockOffsetRepository() *MockOffsetRepository {
	return &MockOffsetRepository{Offsets: make(map[int32]int64)}
}

func (m *MockOffsetRepository) Load(ctx context.Context, partitions []int32) (map[int32]int64, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, partitions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int32]int64)
	for _, p := range partitions {
		if off, ok := m.Offsets[p]; ok {
			out[p] = off
		}
	}
	return out, nil
}

func (m *MockOffsetRepository) Save(ctx context.Context, offsets map[int32]int64) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, offsets)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, off := range offsets {
		m.Offsets[p] = off
	}
	return nil
}

func (m *MockOffsetRepository) List(ctx context.Context) (map[int32]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int32]int64, len(m.Offsets))
	for p, off := range m.Offsets {
		out[p] = off
	}
	return out, nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator returns sequential IDs unless overridden.
type MockIDGenerator struct {
	mu           sync.Mutex
	counter      int
	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("id-%04d", m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu        sync.Mutex
	pending   map[string]bool
	responses map[string]usecase.IdempotentResponse

	ReserveFunc  func(ctx context.Context, key string, ttl time.Duration) (*usecase.IdempotentResponse, error)
	CompleteFunc func(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error
	ReleaseFunc  func(ctx context.Context, key string) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		pending:   make(map[string]bool),
		responses: make(map[string]usecase.IdempotentResponse),
	}
}

func (m *MockIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (*usecase.IdempotentResponse, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.responses[key]; ok {
		return &resp, nil
	}
	if m.pending[key] {
		return nil, domain.ErrRequestInFlight
	}
	m.pending[key] = true
	return nil, nil
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, key, resp, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.responses[key] = resp
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	return nil
}
