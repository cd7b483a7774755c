package tinvest

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/stocks-alerter/internal/config"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/STTM-NSU/stocks-alerter/internal/provider"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
)

type Catalog struct {
	client *investgo.InstrumentsServiceClient
}

var _ provider.Catalog = (*Catalog)(nil)

func NewCatalog(c *investgo.Client) *Catalog {
	return &Catalog{
		client: c.NewInstrumentsServiceClient(),
	}
}

// GetCatalog returns tradable instruments of the requested type in provider order.
func (c *Catalog) GetCatalog(ctx context.Context, instrumentType string) ([]model.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch instrumentType {
	case config.InstrumentTypeShare:
		resp, err := c.client.Shares(investapi.InstrumentStatus_INSTRUMENT_STATUS_BASE)
		if err != nil {
			return nil, fmt.Errorf("%w: can't get shares", err)
		}
		return toInstruments(resp.GetInstruments()), nil
	case config.InstrumentTypeEtf:
		resp, err := c.client.Etfs(investapi.InstrumentStatus_INSTRUMENT_STATUS_BASE)
		if err != nil {
			return nil, fmt.Errorf("%w: can't get etfs", err)
		}
		return toInstruments(resp.GetInstruments()), nil
	default:
		return nil, fmt.Errorf("unsupported instrument type %q", instrumentType)
	}
}

type catalogItem interface {
	GetUid() string
	GetName() string
	GetTicker() string
}

func toInstruments[T catalogItem](items []T) []model.Instrument {
	instruments := make([]model.Instrument, 0, len(items))
	for _, item := range items {
		instruments = append(instruments, model.Instrument{
			Uid:    item.GetUid(),
			Name:   item.GetName(),
			Ticker: item.GetTicker(),
		})
	}
	return instruments
}
