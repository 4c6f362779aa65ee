package badger

import (
	"context"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	infrabadger "github.com/iho/accounter/internal/infrastructure/badger"
)

func newTestDB(t *testing.T) *badgerdb.DB {
	t.Helper()

	db, err := infrabadger.Open(infrabadger.Config{InMemory: true, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = infrabadger.Close(context.Background(), db)
	})

	return db
}
