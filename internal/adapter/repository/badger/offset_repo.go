package badger

import (
	"context"
	"strconv"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// OffsetRepository implements usecase.OffsetRepository.
type OffsetRepository struct {
	db *badgerdb.DB
}

// NewOffsetRepository creates a new OffsetRepository.
func NewOffsetRepository(db *badgerdb.DB) *OffsetRepository {
	return &OffsetRepository{db: db}
}

// Load returns the persisted offsets of the given partitions.
func (r *OffsetRepository) Load(ctx context.Context, partitions []int32) (map[int32]int64, error) {
	offsets := make(map[int32]int64, len(partitions))
	err := r.db.View(func(txn *badgerdb.Txn) error {
		for _, p := range partitions {
			var off int64
			found, err := getJSON(txn, offsetKey(p), &off)
			if err != nil {
				return err
			}
			if found {
				offsets[p] = off
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("load offsets", err)
	}

	return offsets, nil
}

// Save overwrites the persisted offsets of every partition in offsets.
func (r *OffsetRepository) Save(ctx context.Context, offsets map[int32]int64) error {
	if len(offsets) == 0 {
		return nil
	}

	err := r.db.Update(func(txn *badgerdb.Txn) error {
		for p, off := range offsets {
			if err := setJSON(txn, offsetKey(p), off); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapError("save offsets", err)
	}

	return nil
}

// List returns every persisted offset.
func (r *OffsetRepository) List(ctx context.Context) (map[int32]int64, error) {
	offsets := make(map[int32]int64)
	err := r.db.View(func(txn *badgerdb.Txn) error {
		return scan(txn, []byte(NamespaceOffsets), func(key, val []byte) error {
			p, err := parseOffsetKey(key)
			if err != nil {
				return err
			}
			off, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return err
			}
			offsets[p] = off
			return nil
		})
	})
	if err != nil {
		return nil, wrapError("list offsets", err)
	}

	return offsets, nil
}
