package jetstream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/accounter/internal/domain"
)

// fakeStream keeps messages per stream in memory.
type fakeStream struct {
	mu       sync.Mutex
	streams  map[string][][]byte
	subjects map[string]string
	deleted  map[string]map[uint64]bool
	failPub  error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		streams:  make(map[string][][]byte),
		subjects: make(map[string]string),
		deleted:  make(map[string]map[uint64]bool),
	}
}

func (f *fakeStream) StreamInfo(name string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.streams[name]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{
		Config: nats.StreamConfig{Name: name},
		State:  nats.StreamState{LastSeq: uint64(len(msgs))},
	}, nil
}

func (f *fakeStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[cfg.Name] = nil
	for _, s := range cfg.Subjects {
		f.subjects[s] = cfg.Name
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub != nil {
		return nil, f.failPub
	}
	name, ok := f.subjects[subj]
	if !ok {
		return nil, nats.ErrNoStreamResponse
	}
	f.streams[name] = append(f.streams[name], data)
	return &nats.PubAck{Stream: name, Sequence: uint64(len(f.streams[name]))}, nil
}

func (f *fakeStream) GetMsg(name string, seq uint64, _ ...nats.JSOpt) (*nats.RawStreamMsg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.streams[name]
	if seq == 0 || seq > uint64(len(msgs)) || f.deleted[name][seq] {
		return nil, nats.ErrMsgNotFound
	}
	return &nats.RawStreamMsg{Sequence: seq, Data: msgs[seq-1]}, nil
}

func (f *fakeStream) remove(name string, seq uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleted[name] == nil {
		f.deleted[name] = make(map[uint64]bool)
	}
	f.deleted[name][seq] = true
}

func newTestLog(t *testing.T, partitions int32) (*Log, *fakeStream) {
	t.Helper()
	js := newFakeStream()
	l := New(Config{JS: js, Prefix: "TEST", Partitions: partitions, BatchSize: 10, IdleInterval: 5 * time.Millisecond})
	require.NoError(t, l.EnsureStreams(context.Background()))
	return l, js
}

func entry(account int64, seq int) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:        "e",
		PlanID:    "plan",
		BatchID:   1,
		Operation: domain.OperationCommit,
		AccountID: account,
		Amount:    decimal.RequireFromString("7.25"),
		Currency:  "EUR",
		Sequence:  seq,
		Total:     2,
	}
}

func TestEnsureStreamsIsIdempotent(t *testing.T) {
	l, js := newTestLog(t, 3)
	require.NoError(t, l.EnsureStreams(context.Background()))

	assert.Len(t, js.streams, 3)
	assert.Equal(t, "TEST_2", l.StreamName(2))
	assert.Equal(t, "TEST_2", js.subjects[l.Subject(2)])
}

func TestPublishMapsSequenceToOffset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 4)

	for i := 0; i < 3; i++ {
		pos, err := l.Publish(ctx, 11, entry(11, i))
		require.NoError(t, err)
		assert.Equal(t, domain.PartitionFor(11, 4), pos.Partition)
		assert.Equal(t, int64(i), pos.Offset)
	}
}

func TestPublishFailure(t *testing.T) {
	l, js := newTestLog(t, 1)
	js.failPub = errors.New("no responders")

	_, err := l.Publish(context.Background(), 1, entry(1, 0))
	assert.ErrorIs(t, err, domain.ErrLogUnavailable)
}

func TestPollSeekAndGaps(t *testing.T) {
	ctx := context.Background()
	l, js := newTestLog(t, 1)

	for i := 0; i < 4; i++ {
		_, err := l.Publish(ctx, 1, entry(1, i))
		require.NoError(t, err)
	}
	js.remove(l.StreamName(0), 2)

	r, err := l.Open(ctx, []int32{0})
	require.NoError(t, err)

	records, err := r.Poll(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int64{0, 2, 3}, []int64{records[0].Offset, records[1].Offset, records[2].Offset})
	assert.True(t, records[2].Entry.Amount.Equal(decimal.RequireFromString("7.25")))

	records, err = r.Poll(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, r.Seek(0, 3))
	records, err = r.Poll(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Entry.Sequence)
}

func TestPollReportsTrailingGap(t *testing.T) {
	ctx := context.Background()
	l, js := newTestLog(t, 1)

	for i := 0; i < 3; i++ {
		_, err := l.Publish(ctx, 1, entry(1, i))
		require.NoError(t, err)
	}
	js.remove(l.StreamName(0), 2)
	js.remove(l.StreamName(0), 3)

	r, err := l.Open(ctx, []int32{0})
	require.NoError(t, err)
	require.NoError(t, r.Seek(0, 1))

	records, err := r.Poll(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Entry)
	assert.Equal(t, int64(2), records[0].Offset)

	records, err = r.Poll(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPollWakesOnLatePublish(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)

	r, err := l.Open(ctx, []int32{0})
	require.NoError(t, err)

	go func() {
		time.Sleep(15 * time.Millisecond)
		_, _ = l.Publish(ctx, 1, entry(1, 0))
	}()

	records, err := r.Poll(ctx, time.Second)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestPollRespectsContext(t *testing.T) {
	l, _ := newTestLog(t, 1)
	r, err := l.Open(context.Background(), []int32{0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Poll(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode(0, &nats.RawStreamMsg{Sequence: 1, Data: []byte("{")})
	assert.ErrorIs(t, err, domain.ErrMalformedLogMessage)

	_, err = decode(0, &nats.RawStreamMsg{Sequence: 0, Data: []byte("{}")})
	assert.ErrorIs(t, err, domain.ErrMalformedLogMessage)
}

func TestSubjectIsNamespaced(t *testing.T) {
	l := New(Config{Prefix: "LEDGER", Partitions: 2})
	assert.True(t, strings.HasPrefix(l.Subject(1), "LEDGER."))
	_, err := l.Open(context.Background(), []int32{5})
	assert.ErrorIs(t, err, domain.ErrUnknownPartition)
}
