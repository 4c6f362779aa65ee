package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
)

// ConsistencyGate decides whether local replay has caught up with a clock.
type ConsistencyGate struct {
	offsetRepo OffsetRepository
	partitions int32
	metrics    *metrics.Metrics
}

func NewConsistencyGate(offsetRepo OffsetRepository, partitions int32, metrics *metrics.Metrics) *ConsistencyGate {
	return &ConsistencyGate{
		offsetRepo: offsetRepo,
		partitions: partitions,
		metrics:    metrics,
	}
}

// Check returns domain.ErrNotReady unless, for the partition of every given
// account, the persisted consumer offset has reached the clock's offset.
// It never waits; callers retry.
func (g *ConsistencyGate) Check(ctx context.Context, clock domain.Clock, accountIDs ...int64) error {
	if len(clock) == 0 {
		return nil
	}

	var needed []int32
	seen := make(map[int32]bool)
	for _, id := range accountIDs {
		p := domain.PartitionFor(id, g.partitions)
		if _, constrained := clock[p]; constrained && !seen[p] {
			seen[p] = true
			needed = append(needed, p)
		}
	}
	if len(needed) == 0 {
		return nil
	}

	offsets, err := g.offsetRepo.Load(ctx, needed)
	if err != nil {
		return err
	}

	for _, p := range needed {
		want := clock[p]
		have := offsets[p]
		if have < want {
			if g.metrics != nil {
				g.metrics.NotReady.WithLabelValues(strconv.Itoa(int(p))).Inc()
				g.metrics.ReadDelay.Observe(float64(want - have))
			}
			return fmt.Errorf("%w: partition %d at %d, need %d", domain.ErrNotReady, p, have, want)
		}
	}

	return nil
}
