package tinvest

import (
	"io"
	"testing"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/provider"
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type fakeRaw struct {
	sent      []*investapi.MarketDataRequest
	responses []*investapi.MarketDataResponse
	closed    bool
}

func (f *fakeRaw) Send(r *investapi.MarketDataRequest) error {
	f.sent = append(f.sent, r)
	return nil
}

func (f *fakeRaw) Recv() (*investapi.MarketDataResponse, error) {
	if len(f.responses) == 0 {
		return nil, io.EOF
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeRaw) CloseSend() error {
	f.closed = true
	return nil
}

func TestStreamSubscribe(t *testing.T) {
	raw := &fakeRaw{}
	s := newStream(raw, func() {})

	require.NoError(t, s.Subscribe([]string{"uid-1", "uid-2"}))
	require.Len(t, raw.sent, 1)

	req := raw.sent[0].GetSubscribeCandlesRequest()
	require.NotNil(t, req)
	assert.Equal(t, investapi.SubscriptionAction_SUBSCRIPTION_ACTION_SUBSCRIBE, req.GetSubscriptionAction())
	require.Len(t, req.GetInstruments(), 2)
	assert.Equal(t, "uid-2", req.GetInstruments()[1].GetInstrumentId())
	assert.Equal(t, investapi.SubscriptionInterval_SUBSCRIPTION_INTERVAL_ONE_MINUTE, req.GetInstruments()[0].GetInterval())
}

func TestStreamRecv(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	raw := &fakeRaw{responses: []*investapi.MarketDataResponse{
		{Payload: &investapi.MarketDataResponse_Ping{Ping: &investapi.Ping{}}},
		{Payload: &investapi.MarketDataResponse_SubscribeCandlesResponse{
			SubscribeCandlesResponse: &investapi.SubscribeCandlesResponse{
				CandlesSubscriptions: []*investapi.CandleSubscription{
					{InstrumentUid: "uid-1", SubscriptionStatus: investapi.SubscriptionStatus_SUBSCRIPTION_STATUS_SUCCESS},
					{InstrumentUid: "uid-2", SubscriptionStatus: investapi.SubscriptionStatus_SUBSCRIPTION_STATUS_INSTRUMENT_NOT_FOUND},
				},
			},
		}},
		{Payload: &investapi.MarketDataResponse_Candle{Candle: &investapi.Candle{
			InstrumentUid: "uid-1",
			Time:          timestamppb.New(start.Add(12 * time.Second)),
			Open:          &investapi.Quotation{Units: 100, Nano: 500000000},
			High:          &investapi.Quotation{Units: 101},
			Low:           &investapi.Quotation{Units: 99, Nano: 10000000},
			Close:         &investapi.Quotation{Units: 100, Nano: 250000000},
		}}},
	}}
	s := newStream(raw, func() {})

	ev, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, []provider.Ack{
		{InstrumentId: "uid-1", Success: true},
		{InstrumentId: "uid-2", Success: false},
	}, ev.Acks)

	ev, err = s.Recv()
	require.NoError(t, err)
	require.NotNil(t, ev.Candle)
	assert.Equal(t, "uid-1", ev.Candle.InstrumentId)
	assert.True(t, ev.Candle.StartTime.Equal(start))
	assert.True(t, ev.Candle.Open.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, ev.Candle.Low.Equal(decimal.RequireFromString("99.01")))
	assert.True(t, ev.Candle.Close.Equal(decimal.RequireFromString("100.25")))

	_, err = s.Recv()
	assert.ErrorIs(t, err, provider.ErrStreamClosed)
}

func TestStreamClose(t *testing.T) {
	raw := &fakeRaw{}
	cancelled := false
	s := newStream(raw, func() { cancelled = true })

	require.NoError(t, s.Close())
	assert.True(t, raw.closed)
	assert.True(t, cancelled)
}

func TestToInstruments(t *testing.T) {
	shares := []*investapi.Share{
		{Uid: "u1", Name: "Sberbank", Ticker: "SBER"},
		{Uid: "u2", Name: "Gazprom", Ticker: "GAZP"},
	}

	got := toInstruments(shares)
	require.Len(t, got, 2)
	assert.Equal(t, "SBER", got[0].Ticker)
	assert.Equal(t, "u2", got[1].Uid)
	assert.Equal(t, "Gazprom", got[1].Name)
}
