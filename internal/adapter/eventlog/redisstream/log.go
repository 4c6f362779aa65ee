// Package redisstream stores each log partition in its own Redis stream.
//
// Offsets are dense and start at zero. The entry at offset n carries the
// stream ID 0-(n+1), so a reader resumes with XREAD from ID 0-n.
package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
	"github.com/iho/accounter/internal/usecase"
)

const (
	backendName = "redis"
	entryField  = "entry"
)

// appendScript assigns the next offset and appends under its ID atomically.
var appendScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[2])
redis.call('XADD', KEYS[1], '0-' .. seq, '` + entryField + `', ARGV[1])
return seq - 1
`)

// Config for Log.
type Config struct {
	Client     *redis.Client
	Prefix     string
	Partitions int32
	BatchSize  int64 // Max records per partition per poll
	Metrics    *metrics.Metrics
}

// Log is a partitioned log backed by Redis streams.
type Log struct {
	client     *redis.Client
	prefix     string
	partitions int32
	batchSize  int64
	metrics    *metrics.Metrics
}

// New creates a new Log.
func New(cfg Config) *Log {
	if cfg.Prefix == "" {
		cfg.Prefix = "accounter:log"
	}
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	return &Log{
		client:     cfg.Client,
		prefix:     cfg.Prefix,
		partitions: cfg.Partitions,
		batchSize:  cfg.BatchSize,
		metrics:    cfg.Metrics,
	}
}

// Partitions returns the partition count.
func (l *Log) Partitions() int32 {
	return l.partitions
}

// streamKey uses a hash tag so a stream and its counter share a cluster slot.
func (l *Log) streamKey(p int32) string {
	return fmt.Sprintf("{%s:%d}", l.prefix, p)
}

func (l *Log) seqKey(p int32) string {
	return l.streamKey(p) + ":seq"
}

// Publish appends entry to the partition owning key.
func (l *Log) Publish(ctx context.Context, key int64, entry *domain.LedgerEntry) (domain.LogPosition, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return domain.LogPosition{}, fmt.Errorf("failed to marshal entry: %w", err)
	}

	p := domain.PartitionFor(key, l.partitions)
	offset, err := appendScript.Run(ctx, l.client, []string{l.streamKey(p), l.seqKey(p)}, payload).Int64()
	l.observe("publish", err)
	if err != nil {
		return domain.LogPosition{}, fmt.Errorf("%w: append to partition %d: %v", domain.ErrLogUnavailable, p, err)
	}

	return domain.LogPosition{Partition: p, Offset: offset}, nil
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
	if err != nil && !errors.Is(err, redis.Nil) {
		l.metrics.LogErrors.WithLabelValues(backendName, op).Inc()
	}
}

// Reader reads a fixed group of partitions.
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

// Poll blocks in XREAD for up to timeout.
func (r *Reader) Poll(ctx context.Context, timeout time.Duration) ([]domain.LogRecord, error) {
	streams := make([]string, 0, len(r.order)*2)
	byKey := make(map[string]int32, len(r.order))
	for _, p := range r.order {
		key := r.log.streamKey(p)
		byKey[key] = p
		streams = append(streams, key)
	}
	for _, p := range r.order {
		streams = append(streams, "0-"+strconv.FormatInt(r.positions[p], 10))
	}

	block := timeout
	if block < time.Millisecond {
		// A zero BLOCK would wait forever.
		block = -1
	}

	res, err := r.log.client.XRead(ctx, &redis.XReadArgs{
		Streams: streams,
		Count:   r.log.batchSize,
		Block:   block,
	}).Result()
	r.log.observe("poll", err)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read streams: %v", domain.ErrLogUnavailable, err)
	}

	var records []domain.LogRecord
	for _, stream := range res {
		p, ok := byKey[stream.Stream]
		if !ok {
			continue
		}
		for _, msg := range stream.Messages {
			rec, err := decode(p, msg)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
			r.positions[p] = rec.Offset + 1
		}
	}

	return records, nil
}

// Close releases the reader. The client is shared and closed by its owner.
func (r *Reader) Close() error {
	return nil
}

func decode(p int32, msg redis.XMessage) (domain.LogRecord, error) {
	offset, err := offsetFromID(msg.ID)
	if err != nil {
		return domain.LogRecord{}, err
	}

	raw, ok := msg.Values[entryField].(string)
	if !ok {
		return domain.LogRecord{}, fmt.Errorf("%w: message %s has no entry", domain.ErrMalformedLogMessage, msg.ID)
	}

	var entry domain.LedgerEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return domain.LogRecord{}, fmt.Errorf("%w: message %s: %v", domain.ErrMalformedLogMessage, msg.ID, err)
	}

	return domain.LogRecord{Partition: p, Offset: offset, Entry: &entry}, nil
}

// offsetFromID maps stream ID 0-(n+1) back to offset n.
func offsetFromID(id string) (int64, error) {
	ms, seq, ok := strings.Cut(id, "-")
	if !ok || ms != "0" {
		return 0, fmt.Errorf("%w: unexpected stream id %q", domain.ErrMalformedLogMessage, id)
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: unexpected stream id %q", domain.ErrMalformedLogMessage, id)
	}
	return n - 1, nil
}
