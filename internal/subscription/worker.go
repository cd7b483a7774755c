package subscription

import (
	"context"
	"errors"

	"github.com/STTM-NSU/stocks-alerter/internal/detector"
	"github.com/STTM-NSU/stocks-alerter/internal/history"
	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/STTM-NSU/stocks-alerter/internal/provider"
	"github.com/STTM-NSU/stocks-alerter/internal/sink"
	"github.com/google/uuid"
)

// TickerLookup resolves instrument ids to tickers.
type TickerLookup interface {
	Ticker(uid string) (string, bool)
}

// deps are shared by every worker of a manager.
type deps struct {
	md         provider.MarketData
	states     *StateTable
	store      *history.Store
	detector   *detector.Detector
	tickers    TickerLookup
	sink       sink.EventSink
	throughput *Throughput
	logger     logger.Logger
}

// Worker owns one market data stream for a chunk of instruments. It exits on
// the first stream error and hands every instrument it still owns back to
// NotSubscribed.
type Worker struct {
	id    string
	chunk []string
	owned map[string]struct{}

	everSubscribed map[string]struct{}

	deps
}

func newWorker(id string, chunk []string, d deps) *Worker {
	owned := make(map[string]struct{}, len(chunk))
	for _, uid := range chunk {
		owned[uid] = struct{}{}
	}

	return &Worker{
		id:             id,
		chunk:          chunk,
		owned:          owned,
		everSubscribed: make(map[string]struct{}),
		deps:           d,
	}
}

func (w *Worker) Id() string {
	return w.id
}

func (w *Worker) Run(ctx context.Context) {
	defer w.release()

	err := w.consume(ctx)
	switch {
	case ctx.Err() != nil:
		w.logger.Infof("worker %s stopped: %s", w.id, ctx.Err())
	case isClosed(err):
		w.logger.Warnf("stream of worker %s closed by server", w.id)
	default:
		w.logger.Errorf("%s: worker %s terminated", err, w.id)
	}
}

func (w *Worker) consume(ctx context.Context) error {
	stream, err := w.md.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			w.logger.Debugf("%s: can't close stream of worker %s", err, w.id)
		}
	}()

	if err := stream.Subscribe(w.chunk); err != nil {
		return err
	}
	w.logger.Infof("worker %s requested %d instruments", w.id, len(w.chunk))

	for {
		event, err := stream.Recv()
		if err != nil {
			return err
		}

		for _, ack := range event.Acks {
			w.handleAck(ack)
		}
		if event.Candle != nil {
			w.handleCandle(ctx, *event.Candle)
		}
	}
}

func (w *Worker) handleAck(ack provider.Ack) {
	if _, ok := w.owned[ack.InstrumentId]; !ok {
		return
	}

	if !w.states.Ack(ack.InstrumentId, w.id, ack.Success) {
		return
	}
	if ack.Success {
		w.everSubscribed[ack.InstrumentId] = struct{}{}
		return
	}
	w.logger.Warnf("subscription of %s rejected in worker %s", ack.InstrumentId, w.id)
}

func (w *Worker) handleCandle(ctx context.Context, c provider.Candle) {
	if _, ok := w.owned[c.InstrumentId]; !ok {
		return
	}
	ticker, ok := w.tickers.Ticker(c.InstrumentId)
	if !ok {
		w.logger.Debugf("candle for unknown instrument %s", c.InstrumentId)
		return
	}

	w.throughput.Inc()
	sample := w.store.Update(c.InstrumentId, model.CandleSample{
		StartTime: c.StartTime,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
	})

	alert, ok := w.detector.Evaluate(ticker, &sample, w.store.Window(c.InstrumentId))
	if !ok {
		return
	}
	alert.Id = uuid.NewString()
	w.sink.NotifyAlert(ctx, alert)
}

func (w *Worker) release() {
	released := w.states.Release(w.id, w.chunk)
	w.logger.Infof("worker %s released %d instruments (%d ever subscribed)", w.id, released, len(w.everSubscribed))
}

// isClosed reports a clean end of stream as opposed to a transport failure.
func isClosed(err error) bool {
	return errors.Is(err, provider.ErrStreamClosed)
}
