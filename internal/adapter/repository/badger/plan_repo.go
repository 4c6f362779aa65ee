package badger

import (
	"context"
	"encoding/json"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// PlanMarkerRepository implements usecase.PlanMarkerRepository.
type PlanMarkerRepository struct {
	db *badgerdb.DB
}

// NewPlanMarkerRepository creates a new PlanMarkerRepository.
func NewPlanMarkerRepository(db *badgerdb.DB) *PlanMarkerRepository {
	return &PlanMarkerRepository{db: db}
}

// Get reads a marker outside any transaction.
func (r *PlanMarkerRepository) Get(ctx context.Context, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error) {
	var (
		marker domain.PlanMarker
		found  bool
	)
	err := r.db.View(func(txn *badgerdb.Txn) error {
		var err error
		found, err = getJSON(txn, planKey(planID, op, accountID), &marker)
		return err
	})
	if err != nil {
		return nil, wrapError("get plan marker", err)
	}
	if !found {
		return nil, domain.ErrPlanMarkerNotFound
	}

	return &marker, nil
}

// GetForUpdate reads a marker inside tx.
func (r *PlanMarkerRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error) {
	txn, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var marker domain.PlanMarker
	found, err := getJSON(txn, planKey(planID, op, accountID), &marker)
	if err != nil {
		return nil, wrapError("get plan marker for update", err)
	}
	if !found {
		return nil, domain.ErrPlanMarkerNotFound
	}

	return &marker, nil
}

// Put writes a marker inside tx.
func (r *PlanMarkerRepository) Put(ctx context.Context, tx usecase.Transaction, marker *domain.PlanMarker) error {
	txn, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	if err := setJSON(txn, planKey(marker.PlanID, marker.Operation, marker.AccountID), marker); err != nil {
		return wrapError("put plan marker", err)
	}

	return nil
}

// ListByPlan returns every marker recorded for a plan.
func (r *PlanMarkerRepository) ListByPlan(ctx context.Context, planID string) ([]*domain.PlanMarker, error) {
	var markers []*domain.PlanMarker
	err := r.db.View(func(txn *badgerdb.Txn) error {
		return scan(txn, planPrefix(planID), func(_, val []byte) error {
			var m domain.PlanMarker
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			markers = append(markers, &m)
			return nil
		})
	})
	if err != nil {
		return nil, wrapError("list plan markers", err)
	}

	return markers, nil
}
