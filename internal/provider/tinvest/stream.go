package tinvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/provider"
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

type MarketData struct {
	client investapi.MarketDataStreamServiceClient
}

var _ provider.MarketData = (*MarketData)(nil)

func NewMarketData(conn grpc.ClientConnInterface) *MarketData {
	return &MarketData{
		client: investapi.NewMarketDataStreamServiceClient(conn),
	}
}

func (m *MarketData) OpenStream(ctx context.Context) (provider.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	raw, err := m.client.MarketDataStream(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: can't open market data stream", err)
	}

	return newStream(raw, cancel), nil
}

// rawStream is the part of the generated bidi client the adapter needs.
type rawStream interface {
	Send(*investapi.MarketDataRequest) error
	Recv() (*investapi.MarketDataResponse, error)
	CloseSend() error
}

type stream struct {
	raw    rawStream
	cancel context.CancelFunc
}

func newStream(raw rawStream, cancel context.CancelFunc) *stream {
	return &stream{
		raw:    raw,
		cancel: cancel,
	}
}

func (s *stream) Subscribe(instrumentIds []string) error {
	instruments := make([]*investapi.CandleInstrument, 0, len(instrumentIds))
	for _, id := range instrumentIds {
		instruments = append(instruments, &investapi.CandleInstrument{
			InstrumentId: id,
			Interval:     investapi.SubscriptionInterval_SUBSCRIPTION_INTERVAL_ONE_MINUTE,
		})
	}

	err := s.raw.Send(&investapi.MarketDataRequest{
		Payload: &investapi.MarketDataRequest_SubscribeCandlesRequest{
			SubscribeCandlesRequest: &investapi.SubscribeCandlesRequest{
				SubscriptionAction: investapi.SubscriptionAction_SUBSCRIPTION_ACTION_SUBSCRIBE,
				Instruments:        instruments,
				WaitingClose:       false,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: can't send subscribe candles request", err)
	}

	return nil
}

func (s *stream) Recv() (provider.Event, error) {
	for {
		resp, err := s.raw.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return provider.Event{}, provider.ErrStreamClosed
			}
			return provider.Event{}, fmt.Errorf("%w: can't receive market data", err)
		}

		if subs := resp.GetSubscribeCandlesResponse(); subs != nil {
			acks := make([]provider.Ack, 0, len(subs.GetCandlesSubscriptions()))
			for _, sub := range subs.GetCandlesSubscriptions() {
				if sub.GetInstrumentUid() == "" {
					continue
				}
				acks = append(acks, provider.Ack{
					InstrumentId: sub.GetInstrumentUid(),
					Success:      sub.GetSubscriptionStatus() == investapi.SubscriptionStatus_SUBSCRIPTION_STATUS_SUCCESS,
				})
			}
			return provider.Event{Acks: acks}, nil
		}

		if c := resp.GetCandle(); c != nil {
			return provider.Event{Candle: &provider.Candle{
				InstrumentId: c.GetInstrumentUid(),
				StartTime:    c.GetTime().AsTime().UTC().Truncate(time.Minute),
				Open:         quotationToDecimal(c.GetOpen()),
				High:         quotationToDecimal(c.GetHigh()),
				Low:          quotationToDecimal(c.GetLow()),
				Close:        quotationToDecimal(c.GetClose()),
			}}, nil
		}
		// pings and payloads of other subscriptions
	}
}

func (s *stream) Close() error {
	defer s.cancel()
	return s.raw.CloseSend()
}

func quotationToDecimal(q *investapi.Quotation) decimal.Decimal {
	return decimal.New(q.GetUnits(), 0).Add(decimal.New(int64(q.GetNano()), -9))
}
