package instruments

import (
	"context"
	"errors"
	"fmt"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/STTM-NSU/stocks-alerter/internal/provider"
	"github.com/STTM-NSU/stocks-alerter/internal/trace"
	"go.opentelemetry.io/otel/attribute"
)

var ErrEmptyCatalog = errors.New("empty instruments catalog")

// Registry is the immutable universe of instruments. It is filled once by Load
// and only read afterwards, so it needs no locking.
type Registry struct {
	instruments []model.Instrument
	byUid       map[string]model.Instrument
}

func NewRegistry(instruments []model.Instrument, logger logger.Logger) *Registry {
	r := &Registry{
		instruments: make([]model.Instrument, 0, len(instruments)),
		byUid:       make(map[string]model.Instrument, len(instruments)),
	}

	for _, i := range instruments {
		if i.Uid == "" || i.Ticker == "" {
			logger.Debugf("skip instrument without uid or ticker: [%v]", i)
			continue
		}
		if _, ok := r.byUid[i.Uid]; ok {
			logger.Warnf("duplicate instrument %s (%s) in catalog", i.Uid, i.Ticker)
			continue
		}
		r.byUid[i.Uid] = i
		r.instruments = append(r.instruments, i)
	}

	return r
}

// Load fetches the catalog once. Any error here is fatal for startup.
func Load(ctx context.Context, catalog provider.Catalog, instrumentType string, logger logger.Logger) (*Registry, error) {
	ctx, span := trace.StartSpan(ctx, "instruments.Load")
	defer span.End()

	instruments, err := catalog.GetCatalog(ctx, instrumentType)
	if err != nil {
		return nil, fmt.Errorf("%w: can't get %s catalog", err, instrumentType)
	}

	r := NewRegistry(instruments, logger)
	span.SetAttributes(attribute.Int("instruments", r.Len()))
	if r.Len() == 0 {
		return nil, ErrEmptyCatalog
	}

	logger.Infof("loaded %d %s instruments", r.Len(), instrumentType)
	return r, nil
}

// All returns the instruments in catalog order. The slice must not be modified.
func (r *Registry) All() []model.Instrument {
	return r.instruments
}

func (r *Registry) Len() int {
	return len(r.instruments)
}

func (r *Registry) Lookup(uid string) (model.Instrument, bool) {
	i, ok := r.byUid[uid]
	return i, ok
}

func (r *Registry) Ticker(uid string) (string, bool) {
	i, ok := r.byUid[uid]
	return i.Ticker, ok
}
