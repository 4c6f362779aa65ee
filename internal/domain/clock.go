package domain

import (
	"encoding/base64"
	"encoding/json"
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
)

// LogPosition is where the log stored a published entry.
type LogPosition struct {
	Partition int32
	Offset    int64
}

// LogRecord is an entry read back from the log. Entry is nil when the
// log no longer holds the offset; consumers advance past it.
type LogRecord struct {
	Partition int32
	Offset    int64
	Entry     *LedgerEntry
}

// Clock maps a partition to the offset its consumer must have reached.
// A nil or empty clock places no constraint on reads.
type Clock map[int32]int64

// ClockFromPositions takes, per partition, the highest offset plus one.
func ClockFromPositions(positions []LogPosition) Clock {
	c := make(Clock, len(positions))
	for _, p := range positions {
		c.Observe(p.Partition, p.Offset+1)
	}
	return c
}

// Observe raises the watermark of a partition to offset if it is higher.
func (c Clock) Observe(partition int32, offset int64) {
	if cur, ok := c[partition]; !ok || offset > cur {
		c[partition] = offset
	}
}

// Merge returns the pointwise maximum of c and other.
func (c Clock) Merge(other Clock) Clock {
	out := make(Clock, len(c)+len(other))
	maps.Copy(out, c)
	for p, off := range other {
		out.Observe(p, off)
	}
	return out
}

// Partitions returns the constrained partitions in ascending order.
func (c Clock) Partitions() []int32 {
	return slices.Sorted(maps.Keys(c))
}

// Encode renders the clock as an opaque token.
func (c Clock) Encode() string {
	if len(c) == 0 {
		return ""
	}
	data, _ := json.Marshal(map[int32]int64(c))
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeClock parses a token produced by Encode. An empty token is an empty clock.
func DecodeClock(token string) (Clock, error) {
	if token == "" {
		return Clock{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, NewValidationError(ErrInvalidClock, "decode token: %v", err)
	}
	var raw map[int32]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewValidationError(ErrInvalidClock, "parse token: %v", err)
	}
	for p, off := range raw {
		if p < 0 || off < 0 {
			return nil, NewValidationError(ErrInvalidClock, "partition %d offset %d", p, off)
		}
	}
	return Clock(raw), nil
}

// PartitionFor maps an account id onto one of n partitions.
// Publisher and consistency gate must agree on this mapping.
func PartitionFor(accountID int64, n int32) int32 {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(accountID, 10)))
	return int32(h.Sum32() % uint32(n))
}
