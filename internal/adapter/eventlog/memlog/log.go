// Package memlog is an in-process partitioned log for tests and single-node runs.
package memlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// Log is an in-memory partitioned, append-only log.
type Log struct {
	mu         sync.RWMutex
	partitions [][]*domain.LedgerEntry
	appended   chan struct{}
	closed     bool
	batchSize  int
}

// New creates a log with n partitions. Poll returns at most batchSize
// records per partition; zero means unbounded.
func New(n int32, batchSize int) *Log {
	if n < 1 {
		n = 1
	}
	return &Log{
		partitions: make([][]*domain.LedgerEntry, n),
		appended:   make(chan struct{}),
		batchSize:  batchSize,
	}
}

// Partitions returns the partition count.
func (l *Log) Partitions() int32 {
	return int32(len(l.partitions))
}

// Publish appends entry to the partition owning key.
func (l *Log) Publish(ctx context.Context, key int64, entry *domain.LedgerEntry) (domain.LogPosition, error) {
	if err := ctx.Err(); err != nil {
		return domain.LogPosition{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return domain.LogPosition{}, fmt.Errorf("%w: log closed", domain.ErrLogUnavailable)
	}

	p := domain.PartitionFor(key, l.Partitions())
	copied := *entry
	l.partitions[p] = append(l.partitions[p], &copied)

	// Wake every poller waiting on the old channel.
	close(l.appended)
	l.appended = make(chan struct{})

	return domain.LogPosition{Partition: p, Offset: int64(len(l.partitions[p]) - 1)}, nil
}

// Len returns the number of records in partition p.
func (l *Log) Len(p int32) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.partitions[p]))
}

// Close stops accepting publishes and wakes pollers.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.appended)
	}
	return nil
}

// Open returns a reader over the given partitions, positioned at offset 0.
func (l *Log) Open(ctx context.Context, partitions []int32) (usecase.LogReader, error) {
	positions := make(map[int32]int64, len(partitions))
	for _, p := range partitions {
		if p < 0 || p >= l.Partitions() {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownPartition, p)
		}
		positions[p] = 0
	}
	return &Reader{log: l, positions: positions, order: partitions}, nil
}

// Reader reads a fixed group of partitions.
type Reader struct {
	log       *Log
	positions map[int32]int64
	order     []int32
	closed    bool
}

// Seek positions the next read of partition p at offset.
func (r *Reader) Seek(p int32, offset int64) error {
	if _, ok := r.positions[p]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownPartition, p)
	}
	if offset < 0 {
		return fmt.Errorf("negative offset %d for partition %d", offset, p)
	}
	r.positions[p] = offset
	return nil
}

// Poll returns the records past the current positions, waiting up to timeout.
func (r *Reader) Poll(ctx context.Context, timeout time.Duration) ([]domain.LogRecord, error) {
	if r.closed {
		return nil, errors.New("reader closed")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		records, wait, closed := r.read()
		if len(records) > 0 {
			return records, nil
		}
		if closed {
			return nil, fmt.Errorf("%w: log closed", domain.ErrLogUnavailable)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wait:
		}
	}
}

func (r *Reader) read() ([]domain.LogRecord, <-chan struct{}, bool) {
	r.log.mu.RLock()
	defer r.log.mu.RUnlock()

	var records []domain.LogRecord
	for _, p := range r.order {
		stored := r.log.partitions[p]
		from := r.positions[p]
		to := int64(len(stored))
		if r.log.batchSize > 0 && to-from > int64(r.log.batchSize) {
			to = from + int64(r.log.batchSize)
		}
		for off := from; off < to; off++ {
			copied := *stored[off]
			records = append(records, domain.LogRecord{Partition: p, Offset: off, Entry: &copied})
		}
		if to > from {
			r.positions[p] = to
		}
	}

	return records, r.log.appended, r.log.closed
}

// Close releases the reader.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}
