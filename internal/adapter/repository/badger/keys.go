package badger

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/iho/accounter/internal/domain"
)

// Namespaces. Each is a key prefix so it can be iterated on its own.
const (
	NamespaceBalances    = "balance/"
	NamespacePlanMarkers = "plan/"
	NamespaceOffsets     = "offset/"
	NamespaceCurrencies  = "currency/"
)

func balanceKey(accountID int64) []byte {
	return []byte(NamespaceBalances + strconv.FormatInt(accountID, 10))
}

func currencyKey(accountID int64) []byte {
	return []byte(NamespaceCurrencies + strconv.FormatInt(accountID, 10))
}

func planPrefix(planID string) []byte {
	return []byte(NamespacePlanMarkers + planID + "/")
}

func planKey(planID string, op domain.Operation, accountID int64) []byte {
	return []byte(NamespacePlanMarkers + planID + "/" + string(op) + "/" + strconv.FormatInt(accountID, 10))
}

func offsetKey(partition int32) []byte {
	return []byte(NamespaceOffsets + strconv.FormatInt(int64(partition), 10))
}

func parseOffsetKey(key []byte) (int32, error) {
	p, err := strconv.ParseInt(strings.TrimPrefix(string(key), NamespaceOffsets), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(p), nil
}

// getJSON reads key into v. It reports false when the key is absent.
func getJSON(txn *badgerdb.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

func setJSON(txn *badgerdb.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return txn.Set(key, data)
}

// scan calls fn for every value under prefix, in key order.
func scan(txn *badgerdb.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}

	return nil
}
