// Package provider describes the market-data collaborator the alerter depends on:
// a one-shot instrument catalog and duplex candle-subscription streams.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/shopspring/decimal"
)

var ErrStreamClosed = errors.New("stream closed")

type Catalog interface {
	GetCatalog(ctx context.Context, instrumentType string) ([]model.Instrument, error)
}

type MarketData interface {
	// OpenStream opens one duplex connection. The stream is released by Close
	// or by cancelling ctx.
	OpenStream(ctx context.Context) (Stream, error)
}

type Stream interface {
	// Subscribe requests 1-minute candles for every instrument id.
	Subscribe(instrumentIds []string) error
	// Recv blocks until the next acknowledgment batch or candle arrives.
	Recv() (Event, error)
	Close() error
}

type Ack struct {
	InstrumentId string
	Success      bool
}

type Candle struct {
	InstrumentId string
	StartTime    time.Time
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
}

// Event carries either a batch of acknowledgments or a single candle.
type Event struct {
	Acks   []Ack
	Candle *Candle
}
