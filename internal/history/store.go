package history

import (
	"sort"
	"sync"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/model"
)

type Config struct {
	CompactionTrigger int
	CompactionTarget  int
}

// Store holds one Window per instrument. Only the worker owning an instrument
// writes its window; the outer map is shared by all workers.
type Store struct {
	cfg Config

	windows map[string]*Window
	mu      sync.RWMutex
}

func NewStore(cfg Config) *Store {
	if cfg.CompactionTarget <= 0 {
		cfg.CompactionTarget = 50
	}
	if cfg.CompactionTrigger <= cfg.CompactionTarget {
		cfg.CompactionTrigger = 2 * cfg.CompactionTarget
	}

	return &Store{
		cfg:     cfg,
		windows: make(map[string]*Window),
	}
}

// Update upserts sample into the instrument's window and returns the stored
// copy with the inherited Notified flag.
func (s *Store) Update(instrumentId string, sample model.CandleSample) model.CandleSample {
	return s.window(instrumentId).upsert(sample, s.cfg)
}

// Window returns the instrument's window or nil if no sample was seen yet.
func (s *Store) Window(instrumentId string) *Window {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.windows[instrumentId]
}

// Snapshot returns the instrument's samples oldest first.
func (s *Store) Snapshot(instrumentId string) []model.CandleSample {
	w := s.Window(instrumentId)
	if w == nil {
		return nil
	}

	samples := w.Candidates(time.Time{})
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.windows)
}

func (s *Store) window(instrumentId string) *Window {
	if w := s.Window(instrumentId); w != nil {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[instrumentId]; ok {
		return w
	}
	w := newWindow()
	s.windows[instrumentId] = w
	return w
}

// Window is the bounded history of one instrument keyed by minute.
type Window struct {
	samples map[int64]*model.CandleSample
	mu      sync.RWMutex
}

func newWindow() *Window {
	return &Window{
		samples: make(map[int64]*model.CandleSample),
	}
}

func minuteKey(t time.Time) int64 {
	return t.Truncate(time.Minute).Unix()
}

func (w *Window) upsert(sample model.CandleSample, cfg Config) model.CandleSample {
	w.mu.Lock()
	defer w.mu.Unlock()

	sample.StartTime = sample.StartTime.UTC().Truncate(time.Minute)
	key := minuteKey(sample.StartTime)

	prev, ok := w.samples[key]
	sample.Notified = ok && prev.Notified
	stored := sample
	w.samples[key] = &stored

	if len(w.samples) > cfg.CompactionTrigger {
		w.compact(cfg.CompactionTarget)
	}

	return sample
}

// compact keeps the newest n samples by start time, notified or not.
func (w *Window) compact(n int) {
	keys := make([]int64, 0, len(w.samples))
	for k := range w.samples {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	for _, k := range keys[n:] {
		delete(w.samples, k)
	}
}

// Candidates returns copies of all samples newest first, skipping the one that
// starts at exclude.
func (w *Window) Candidates(exclude time.Time) []model.CandleSample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	skip, hasSkip := int64(0), !exclude.IsZero()
	if hasSkip {
		skip = minuteKey(exclude)
	}

	out := make([]model.CandleSample, 0, len(w.samples))
	for k, s := range w.samples {
		if hasSkip && k == skip {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })

	return out
}

func (w *Window) MarkNotified(start time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.samples[minuteKey(start)]; ok {
		s.Notified = true
	}
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.samples)
}
