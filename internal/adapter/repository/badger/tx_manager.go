package badger

import (
	"context"
	"errors"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	db *badgerdb.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *badgerdb.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin starts a read-write transaction. Every key read through it is
// tracked, so a concurrent commit touching the same key makes Commit fail.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{txn: m.db.NewTransaction(true)}, nil
}

// Tx wraps a badger transaction.
type Tx struct {
	txn  *badgerdb.Txn
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.done = true
	if err := t.txn.Commit(); err != nil {
		return wrapError("commit", err)
	}

	return nil
}

// Rollback discards the transaction. Calling it after Commit is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	t.txn.Discard()
	t.done = true

	return nil
}

// Txn returns the underlying badger transaction.
func (t *Tx) Txn() *badgerdb.Txn {
	return t.txn
}

func unwrapTx(tx usecase.Transaction) (*badgerdb.Txn, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, domain.NewStorageError("tx", errors.New("transaction was not started by this store"))
	}
	if t.done {
		return nil, domain.NewStorageError("tx", badgerdb.ErrDiscardedTxn)
	}

	return t.txn, nil
}

// wrapError maps badger failures onto the domain storage errors.
func wrapError(op string, err error) error {
	if errors.Is(err, badgerdb.ErrConflict) {
		return domain.NewStorageError(op, errors.Join(domain.ErrConflict, err))
	}

	return domain.NewStorageError(op, err)
}
