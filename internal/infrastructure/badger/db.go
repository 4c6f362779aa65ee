package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Config holds embedded store configuration.
type Config struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
	Logger     zerolog.Logger
}

// Open opens the embedded store.
func Open(cfg Config) (*badgerdb.DB, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(cfg.Dir) == "" {
			return nil, errors.New("store directory is required unless running in memory")
		}
		opts = badgerdb.DefaultOptions(cfg.Dir).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(newLogAdapter(cfg.Logger))

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return db, nil
}

// Close flushes the write-ahead state to disk and closes the store.
func Close(ctx context.Context, db *badgerdb.DB) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error
	if !db.Opts().InMemory {
		if err := db.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("failed to sync store: %w", err))
		}
	}
	if err := db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}

	return errors.Join(errs...)
}

// logAdapter routes badger's internal logging through zerolog.
type logAdapter struct {
	logger zerolog.Logger
}

func newLogAdapter(logger zerolog.Logger) *logAdapter {
	return &logAdapter{logger: logger.With().Str("component", "badger").Logger()}
}

func (l *logAdapter) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l *logAdapter) Warningf(format string, args ...any) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l *logAdapter) Infof(format string, args ...any) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l *logAdapter) Debugf(format string, args ...any) {
	l.logger.Trace().Msgf(strings.TrimSpace(format), args...)
}
