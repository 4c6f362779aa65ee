// Package consumer replays the partitioned log into local state with a
// supervised pool of workers.
package consumer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
	"github.com/iho/accounter/internal/usecase"
)

// Worker consumes a fixed group of partitions. It does not retry: any
// failure ends Run and the supervisor starts a replacement.
type Worker struct {
	id          int
	partitions  []int32
	source      usecase.LogSource
	offsets     usecase.OffsetRepository
	handler     usecase.EntryHandler
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	pollTimeout time.Duration
}

// Partitions returns the partitions owned by the worker.
func (w *Worker) Partitions() []int32 {
	return w.partitions
}

// Run consumes until ctx is cancelled or an error occurs. A nil return
// means a clean stop.
func (w *Worker) Run(ctx context.Context) error {
	reader, err := w.source.Open(ctx, w.partitions)
	if err != nil {
		return fmt.Errorf("open reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("failed to close reader")
		}
	}()

	saved, err := w.offsets.Load(ctx, w.partitions)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("load offsets: %w", err)
	}
	for p, offset := range saved {
		if err := reader.Seek(p, offset); err != nil {
			return fmt.Errorf("seek partition %d: %w", p, err)
		}
	}

	w.logger.Info().
		Ints32("partitions", w.partitions).
		Interface("offsets", saved).
		Msg("worker started")

	for {
		if ctx.Err() != nil {
			return nil
		}

		records, err := reader.Poll(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("poll: %w", err)
		}
		if len(records) == 0 {
			continue
		}

		if err := w.handle(ctx, reader, records); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle applies records in log order, then persists the next offset of
// every partition it touched. Nothing is saved unless the whole batch applied.
func (w *Worker) handle(ctx context.Context, reader usecase.LogReader, records []domain.LogRecord) error {
	start := time.Now()

	next := make(map[int32]int64)
	for _, rec := range records {
		if rec.Entry != nil {
			if _, err := w.handler.Apply(ctx, rec.Entry); err != nil {
				return fmt.Errorf("partition %d offset %d: %w", rec.Partition, rec.Offset, err)
			}
		}
		next[rec.Partition] = rec.Offset + 1
	}

	if err := w.offsets.Save(ctx, next); err != nil {
		return fmt.Errorf("save offsets: %w", err)
	}
	for p, offset := range next {
		if err := reader.Seek(p, offset); err != nil {
			return fmt.Errorf("seek partition %d: %w", p, err)
		}
	}

	if w.metrics != nil {
		w.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		for _, rec := range records {
			w.metrics.RecordsConsumed.WithLabelValues(strconv.Itoa(int(rec.Partition))).Inc()
		}
		for p, offset := range next {
			w.metrics.ConsumerOffset.WithLabelValues(strconv.Itoa(int(p))).Set(float64(offset))
		}
	}

	w.logger.Debug().Int("records", len(records)).Msg("batch applied")

	return nil
}
