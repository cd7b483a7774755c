package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/STTM-NSU/stocks-alerter/internal/detector"
	"github.com/STTM-NSU/stocks-alerter/internal/history"
	"github.com/STTM-NSU/stocks-alerter/internal/instruments"
	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/STTM-NSU/stocks-alerter/internal/provider"
)

type fakeStream struct {
	ctx    context.Context
	events chan provider.Event
	errCh  chan error

	autoAck      bool
	reject       map[string]bool
	subscribeErr error

	mu         sync.Mutex
	subscribed []string
	closed     bool
}

func (s *fakeStream) Subscribe(ids []string) error {
	s.mu.Lock()
	s.subscribed = append(s.subscribed, ids...)
	s.mu.Unlock()

	if s.subscribeErr != nil {
		return s.subscribeErr
	}
	if s.autoAck {
		acks := make([]provider.Ack, 0, len(ids))
		for _, id := range ids {
			acks = append(acks, provider.Ack{InstrumentId: id, Success: !s.reject[id]})
		}
		s.events <- provider.Event{Acks: acks}
	}
	return nil
}

func (s *fakeStream) Recv() (provider.Event, error) {
	select {
	case <-s.ctx.Done():
		return provider.Event{}, s.ctx.Err()
	case err := <-s.errCh:
		return provider.Event{}, err
	case ev := <-s.events:
		return ev, nil
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribed...)
}

// send delivers ev after everything queued before it.
func (s *fakeStream) send(ev provider.Event) {
	s.events <- ev
}

func (s *fakeStream) fail(err error) {
	s.errCh <- err
}

type fakeMarketData struct {
	mu           sync.Mutex
	streams      []*fakeStream
	openErr      error
	subscribeErr error
	autoAck      bool
	reject       map[string]bool
}

func (m *fakeMarketData) OpenStream(ctx context.Context) (provider.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}
	s := &fakeStream{
		ctx:          ctx,
		events:       make(chan provider.Event, 64),
		errCh:        make(chan error, 1),
		autoAck:      m.autoAck,
		reject:       m.reject,
		subscribeErr: m.subscribeErr,
	}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMarketData) Streams() []*fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeStream(nil), m.streams...)
}

// subscribedStreams returns the streams that already sent their subscribe request.
func (m *fakeMarketData) subscribedStreams() []*fakeStream {
	out := make([]*fakeStream, 0)
	for _, s := range m.Streams() {
		if len(s.Subscribed()) > 0 {
			out = append(out, s)
		}
	}
	return out
}

type fakeSink struct {
	mu       sync.Mutex
	alerts   []model.AlertEvent
	statuses []string
}

func (f *fakeSink) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func (f *fakeSink) NotifyStatus(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, text)
}

func (f *fakeSink) Alerts() []model.AlertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AlertEvent(nil), f.alerts...)
}

func (f *fakeSink) Statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func newRegistry(n int) *instruments.Registry {
	list := make([]model.Instrument, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, model.Instrument{
			Uid:    fmt.Sprintf("uid-%04d", i),
			Name:   fmt.Sprintf("Instrument %d", i),
			Ticker: fmt.Sprintf("T%04d", i),
		})
	}
	return instruments.NewRegistry(list, logger.NewNop())
}

func newTestManager(cfg Config, registry *instruments.Registry, md provider.MarketData, s *fakeSink) *Manager {
	return NewManager(cfg,
		registry,
		md,
		history.NewStore(history.Config{CompactionTrigger: 100, CompactionTarget: 50}),
		detector.New(0.05, 10),
		s,
		logger.NewNop(),
	)
}
