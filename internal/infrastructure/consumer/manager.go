package consumer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/accounter/internal/infrastructure/metrics"
	"github.com/iho/accounter/internal/usecase"
)

// Config for Manager.
type Config struct {
	Source              usecase.LogSource
	Offsets             usecase.OffsetRepository
	Handler             usecase.EntryHandler
	Logger              zerolog.Logger
	Metrics             *metrics.Metrics
	Partitions          int32
	PartitionsPerWorker int32
	PollTimeout         time.Duration // Max wait inside one Poll
	RestartDelay        time.Duration // Min time between a worker's death and its replacement
	SupervisorInterval  time.Duration // How often dead workers are checked for restart
}

// Manager owns the worker pool and restarts workers that die.
type Manager struct {
	cfg    Config
	groups [][]int32
}

type workerExit struct {
	id  int
	err error
}

// NewManager creates a new Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.PartitionsPerWorker < 1 {
		cfg.PartitionsPerWorker = 1
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.SupervisorInterval == 0 {
		cfg.SupervisorInterval = time.Second
	}

	return &Manager{
		cfg:    cfg,
		groups: SplitPartitions(cfg.Partitions, cfg.PartitionsPerWorker),
	}
}

// SplitPartitions divides partitions 0..n-1 into contiguous groups of at
// most per partitions.
func SplitPartitions(n, per int32) [][]int32 {
	var groups [][]int32
	for start := int32(0); start < n; start += per {
		end := min(start+per, n)
		group := make([]int32, 0, end-start)
		for p := start; p < end; p++ {
			group = append(group, p)
		}
		groups = append(groups, group)
	}
	return groups
}

// Workers returns the number of workers the manager runs.
func (m *Manager) Workers() int {
	return len(m.groups)
}

func (m *Manager) newWorker(id int) *Worker {
	return &Worker{
		id:          id,
		partitions:  m.groups[id],
		source:      m.cfg.Source,
		offsets:     m.cfg.Offsets,
		handler:     m.cfg.Handler,
		logger:      m.cfg.Logger.With().Int("worker", id).Logger(),
		metrics:     m.cfg.Metrics,
		pollTimeout: m.cfg.PollTimeout,
	}
}

// Run starts every worker and supervises them until ctx is cancelled,
// then waits for all workers to stop.
func (m *Manager) Run(ctx context.Context) error {
	logger := m.cfg.Logger
	logger.Info().
		Int("workers", len(m.groups)).
		Int32("partitions", m.cfg.Partitions).
		Dur("poll_timeout", m.cfg.PollTimeout).
		Msg("consumer manager started")

	// Each live worker sends exactly once, so this never blocks.
	exits := make(chan workerExit, len(m.groups))
	var wg sync.WaitGroup
	alive := 0

	start := func(id int) {
		w := m.newWorker(id)
		alive++
		m.setAlive(alive)
		wg.Add(1)
		go func() {
			defer wg.Done()
			exits <- workerExit{id: id, err: w.Run(ctx)}
		}()
	}

	for id := range m.groups {
		start(id)
	}

	dead := make(map[int]time.Time)
	ticker := time.NewTicker(m.cfg.SupervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			m.setAlive(0)
			logger.Info().Msg("consumer manager stopped")
			return nil

		case exit := <-exits:
			alive--
			m.setAlive(alive)
			if ctx.Err() != nil {
				continue
			}

			err := exit.err
			if err == nil {
				err = errors.New("worker stopped unexpectedly")
			}
			logger.Error().Err(err).
				Int("worker", exit.id).
				Ints32("partitions", m.groups[exit.id]).
				Msg("worker died, scheduling restart")
			dead[exit.id] = time.Now()

		case now := <-ticker.C:
			for id, diedAt := range dead {
				if now.Sub(diedAt) < m.cfg.RestartDelay {
					continue
				}
				delete(dead, id)
				if m.cfg.Metrics != nil {
					m.cfg.Metrics.WorkerRestarts.WithLabelValues(strconv.Itoa(id)).Inc()
				}
				logger.Info().Int("worker", id).Msg("restarting worker")
				start(id)
			}
		}
	}
}

func (m *Manager) setAlive(n int) {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.WorkersAlive.Set(float64(n))
	}
}
