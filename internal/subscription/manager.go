// Package subscription keeps every instrument of the registry subscribed to
// one-minute candles through a bounded fleet of stream workers.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/detector"
	"github.com/STTM-NSU/stocks-alerter/internal/history"
	"github.com/STTM-NSU/stocks-alerter/internal/instruments"
	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/STTM-NSU/stocks-alerter/internal/provider"
	"github.com/STTM-NSU/stocks-alerter/internal/sink"
	"github.com/STTM-NSU/stocks-alerter/internal/trace"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Config struct {
	MaxConcurrentStreams    int
	MaxInstrumentsPerStream int
	Interval                time.Duration
}

type Manager struct {
	cfg Config
	wg  sync.WaitGroup

	workers  map[string]int
	lastRate float64
	mu       sync.RWMutex

	deps
}

func NewManager(cfg Config,
	registry *instruments.Registry,
	md provider.MarketData,
	store *history.Store,
	detector *detector.Detector,
	sink sink.EventSink,
	logger logger.Logger,
) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	return &Manager{
		cfg:     cfg,
		workers: make(map[string]int),
		deps: deps{
			md:         md,
			states:     NewStateTable(registry.All()),
			store:      store,
			detector:   detector,
			tickers:    registry,
			sink:       sink,
			throughput: NewThroughput(time.Now()),
			logger:     logger,
		},
	}
}

// Run ticks immediately and then every interval until ctx is done. Ticks never
// overlap. It returns after all workers have exited.
func (m *Manager) Run(ctx context.Context) {
	defer m.wg.Wait()

	m.tick(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick reports the fleet status and spawns workers for unassigned instruments,
// at most one per free stream slot. It returns the number of spawned workers.
func (m *Manager) tick(ctx context.Context) int {
	spanCtx, span := trace.StartSpan(ctx, "subscription.tick")
	defer span.End()

	_, rate := m.throughput.ResetAndRead(time.Now())
	m.mu.Lock()
	m.lastRate = rate
	m.mu.Unlock()

	status := m.Status()
	m.sink.NotifyStatus(spanCtx, sink.FormatStatus(status))
	span.SetAttributes(
		attribute.Int("streams.active", status.ActiveStreams),
		attribute.Int("instruments.not_subscribed", status.NotSubscribed),
	)

	if status.AvailableStreams == 0 || status.NotSubscribed == 0 {
		return 0
	}

	chunks := chunk(m.states.NotSubscribed(), m.cfg.MaxInstrumentsPerStream)
	if len(chunks) > status.AvailableStreams {
		chunks = chunks[:status.AvailableStreams]
	}

	spawned := 0
	for _, c := range chunks {
		if m.spawn(ctx, c) {
			spawned++
		}
	}
	span.SetAttributes(attribute.Int("streams.spawned", spawned))
	return spawned
}

// spawn marks the chunk Pending under a fresh worker id before the worker
// starts, so the next tick can't hand the same instruments to another stream.
func (m *Manager) spawn(ctx context.Context, ids []string) bool {
	id := uuid.NewString()
	assigned := m.states.Assign(ids, id)
	if len(assigned) == 0 {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.workers[id] = len(assigned)
	m.mu.Unlock()

	w := newWorker(id, assigned, m.deps)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.remove(id)
		defer cancel()

		w.Run(ctx)
	}()

	m.logger.Infof("spawned worker %s for %d instruments", id, len(assigned))
	return true
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.workers, id)
}

func (m *Manager) activeWorkers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.workers)
}

// Status is the current fleet view. The sample rate is the one measured over
// the last completed tick period.
func (m *Manager) Status() model.StatusSummary {
	counts := m.states.Counts()
	active := m.activeWorkers()

	m.mu.RLock()
	rate := m.lastRate
	m.mu.RUnlock()

	return model.StatusSummary{
		MaxStreams:       m.cfg.MaxConcurrentStreams,
		ActiveStreams:    active,
		AvailableStreams: max(0, m.cfg.MaxConcurrentStreams-active),
		NotSubscribed:    counts.NotSubscribed,
		Pending:          counts.Pending,
		Subscribed:       counts.Subscribed,
		SamplesPerSecond: rate,
	}
}

// Workers returns the chunk size of every running worker by id.
func (m *Manager) Workers() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.workers))
	for id, size := range m.workers {
		out[id] = size
	}
	return out
}

func (m *Manager) States() *StateTable {
	return m.states
}

// chunk splits ids into consecutive batches of at most size.
func chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
