// Package jetstream stores each log partition in its own JetStream stream.
//
// A stream's sequence numbers start at 1, so the entry at offset n is
// stream message n+1.
package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
	"github.com/iho/accounter/internal/usecase"
)

const backendName = "nats"

// Stream is the subset of nats.JetStreamContext the log uses.
type Stream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	GetMsg(name string, seq uint64, opts ...nats.JSOpt) (*nats.RawStreamMsg, error)
}

// Config for Log.
type Config struct {
	JS           Stream
	Prefix       string
	Partitions   int32
	BatchSize    int           // Max records per partition per poll
	IdleInterval time.Duration // How often an idle poll rechecks the streams
	Replicas     int
	Metrics      *metrics.Metrics
}

// Log is a partitioned log backed by JetStream.
type Log struct {
	js           Stream
	prefix       string
	partitions   int32
	batchSize    int
	idleInterval time.Duration
	replicas     int
	metrics      *metrics.Metrics
}

// New creates a new Log. Call EnsureStreams before use.
func New(cfg Config) *Log {
	if cfg.Prefix == "" {
		cfg.Prefix = "ACCOUNTER"
	}
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 50 * time.Millisecond
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}

	return &Log{
		js:           cfg.JS,
		prefix:       cfg.Prefix,
		partitions:   cfg.Partitions,
		batchSize:    cfg.BatchSize,
		idleInterval: cfg.IdleInterval,
		replicas:     cfg.Replicas,
		metrics:      cfg.Metrics,
	}
}

// StreamName returns the stream holding partition p.
func (l *Log) StreamName(p int32) string {
	return fmt.Sprintf("%s_%d", l.prefix, p)
}

// Subject returns the subject entries of partition p are published on.
func (l *Log) Subject(p int32) string {
	return fmt.Sprintf("%s.ledger.%d", l.prefix, p)
}

// EnsureStreams creates any missing partition stream.
func (l *Log) EnsureStreams(ctx context.Context) error {
	for p := int32(0); p < l.partitions; p++ {
		name := l.StreamName(p)
		_, err := l.js.StreamInfo(name, nats.Context(ctx))
		if err == nil {
			continue
		}
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("%w: stream %s: %v", domain.ErrLogUnavailable, name, err)
		}

		_, err = l.js.AddStream(&nats.StreamConfig{
			Name:      name,
			Subjects:  []string{l.Subject(p)},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
			Replicas:  l.replicas,
		}, nats.Context(ctx))
		if err != nil {
			return fmt.Errorf("%w: create stream %s: %v", domain.ErrLogUnavailable, name, err)
		}
	}
	return nil
}

// Partitions returns the partition count.
func (l *Log) Partitions() int32 {
	return l.partitions
}

// Publish appends entry to the partition owning key.
func (l *Log) Publish(ctx context.Context, key int64, entry *domain.LedgerEntry) (domain.LogPosition, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return domain.LogPosition{}, fmt.Errorf("failed to marshal entry: %w", err)
	}

	p := domain.PartitionFor(key, l.partitions)
	ack, err := l.js.Publish(l.Subject(p), payload, nats.Context(ctx), nats.ExpectStream(l.StreamName(p)))
	l.observe("publish", err)
	if err != nil {
		return domain.LogPosition{}, fmt.Errorf("%w: publish to partition %d: %v", domain.ErrLogUnavailable, p, err)
	}

	return domain.LogPosition{Partition: p, Offset: int64(ack.Sequence) - 1}, nil
}

// Open returns a reader over the given partitions, positioned at offset 0.
func (l *Log) Open(ctx context.Context, partitions []int32) (usecase.LogReader, error) {
	positions := make(map[int32]int64, len(partitions))
	for _, p := range partitions {
		if p < 0 || p >= l.partitions {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownPartition, p)
		}
		positions[p] = 0
	}

	return &Reader{log: l, order: partitions, positions: positions}, nil
}

func (l *Log) observe(op string, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.LogOperations.WithLabelValues(backendName, op).Inc()
	if err != nil {
		l.metrics.LogErrors.WithLabelValues(backendName, op).Inc()
	}
}

// Reader reads a fixed group of partitions by direct message lookup.
type Reader struct {
	log       *Log
	order     []int32
	positions map[int32]int64
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

// Poll rechecks the streams every idle interval until records appear or
// timeout passes.
func (r *Reader) Poll(ctx context.Context, timeout time.Duration) ([]domain.LogRecord, error) {
	deadline := time.Now().Add(timeout)

	for {
		records, err := r.fetch(ctx)
		if err != nil || len(records) > 0 {
			return records, err
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		if wait > r.log.idleInterval {
			wait = r.log.idleInterval
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Reader) fetch(ctx context.Context) ([]domain.LogRecord, error) {
	var records []domain.LogRecord

	for _, p := range r.order {
		name := r.log.StreamName(p)
		info, err := r.log.js.StreamInfo(name, nats.Context(ctx))
		r.log.observe("info", err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: stream %s: %v", domain.ErrLogUnavailable, name, err)
		}

		next := uint64(r.positions[p]) + 1
		last := info.State.LastSeq
		skipped := false
		for n := 0; next <= last && n < r.log.batchSize; n++ {
			msg, err := r.log.js.GetMsg(name, next, nats.Context(ctx))
			r.log.observe("get", err)
			switch {
			case errors.Is(err, nats.ErrMsgNotFound):
				// Removed by stream limits; nothing left to replay at this sequence.
				next++
				r.positions[p] = int64(next) - 1
				skipped = true
				continue
			case err != nil:
				return nil, fmt.Errorf("%w: get %s/%d: %v", domain.ErrLogUnavailable, name, next, err)
			}

			rec, err := decode(p, msg)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
			next++
			r.positions[p] = rec.Offset + 1
			skipped = false
		}

		// A trailing run of removed sequences is reported as an empty
		// record so the consumer can persist the position past it.
		if skipped {
			records = append(records, domain.LogRecord{Partition: p, Offset: r.positions[p] - 1})
		}
	}

	return records, nil
}

// Close releases the reader. The connection is shared and closed by its owner.
func (r *Reader) Close() error {
	return nil
}

func decode(p int32, msg *nats.RawStreamMsg) (domain.LogRecord, error) {
	if msg.Sequence == 0 {
		return domain.LogRecord{}, fmt.Errorf("%w: zero sequence", domain.ErrMalformedLogMessage)
	}

	var entry domain.LedgerEntry
	if err := json.Unmarshal(msg.Data, &entry); err != nil {
		return domain.LogRecord{}, fmt.Errorf("%w: sequence %d: %v", domain.ErrMalformedLogMessage, msg.Sequence, err)
	}

	return domain.LogRecord{Partition: p, Offset: int64(msg.Sequence) - 1, Entry: &entry}, nil
}
