package detector

import (
	"testing"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/history"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type feed struct {
	store    *history.Store
	detector *Detector
}

func newFeed(threshold float64, lookback int) *feed {
	return &feed{
		store:    history.NewStore(history.Config{CompactionTrigger: 100, CompactionTarget: 50}),
		detector: New(threshold, lookback),
	}
}

func (f *feed) push(minute int, close string) (model.AlertEvent, bool, model.CandleSample) {
	sample := f.store.Update("u1", model.CandleSample{
		StartTime: _base.Add(time.Duration(minute) * time.Minute),
		Close:     decimal.RequireFromString(close),
	})
	alert, ok := f.detector.Evaluate("SBER", &sample, f.store.Window("u1"))
	return alert, ok, sample
}

func (f *feed) pushAll(closes ...string) {
	for m, c := range closes {
		f.push(m, c)
	}
}

func TestEvaluateBreachOnPreviousMinute(t *testing.T) {
	f := newFeed(0.05, 10)
	f.pushAll("100", "100", "100")

	alert, ok, sample := f.push(3, "107")
	require.True(t, ok)
	assert.Equal(t, "SBER", alert.Ticker)
	assert.True(t, alert.FromPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, alert.ToPrice.Equal(decimal.NewFromInt(107)))
	assert.True(t, alert.PercentDiff.Equal(decimal.RequireFromString("0.07")))
	assert.Equal(t, 1, alert.MinutesSpan)
	assert.Equal(t, model.Up, alert.Direction)
	assert.True(t, alert.CandleTime.Equal(_base.Add(3*time.Minute)))
	assert.True(t, sample.Notified)

	stored := f.store.Window("u1").Candidates(time.Time{})
	assert.True(t, stored[0].Notified)
}

func TestEvaluateStopsAtNotifiedBoundary(t *testing.T) {
	f := newFeed(0.05, 10)
	f.pushAll("100", "100", "100")
	_, ok, _ := f.push(3, "107")
	require.True(t, ok)

	_, ok, sample := f.push(4, "108")
	assert.False(t, ok, "minute 0 is behind the notified minute 3 and must not be consulted")
	assert.False(t, sample.Notified)
}

func TestEvaluateRespectsLookback(t *testing.T) {
	f := newFeed(0.05, 2)
	f.pushAll("100", "104", "104", "104")

	_, ok, _ := f.push(4, "106")
	assert.False(t, ok, "the breach against minute 0 is beyond two scanned candles")

	f = newFeed(0.05, 5)
	f.pushAll("100", "104", "104", "104")

	alert, ok, _ := f.push(4, "106")
	require.True(t, ok)
	assert.Equal(t, 4, alert.MinutesSpan)
	assert.True(t, alert.FromPrice.Equal(decimal.NewFromInt(100)))
}

func TestEvaluateDownMove(t *testing.T) {
	f := newFeed(0.05, 10)
	f.pushAll("200", "199", "198")

	alert, ok, _ := f.push(3, "180")
	require.True(t, ok)
	assert.Equal(t, model.Down, alert.Direction)
	assert.True(t, alert.PercentDiff.IsNegative())
	assert.True(t, alert.FromPrice.Equal(decimal.NewFromInt(198)))
}

func TestEvaluateAlreadyNotifiedMinute(t *testing.T) {
	f := newFeed(0.05, 10)
	f.pushAll("100", "100")
	_, ok, _ := f.push(2, "110")
	require.True(t, ok)

	_, ok, sample := f.push(2, "130")
	assert.False(t, ok, "one alert per minute")
	assert.True(t, sample.Notified)
}

func TestEvaluateFlatSeries(t *testing.T) {
	f := newFeed(0.05, 10)
	closes := []string{"100", "101", "102", "103", "102", "101", "100", "99.5", "101", "104", "100.5", "102"}

	for m, c := range closes {
		_, ok, _ := f.push(m, c)
		assert.False(t, ok, "minute %d", m)
	}
}

func TestEvaluateThresholdIsStrict(t *testing.T) {
	f := newFeed(0.05, 10)
	f.pushAll("100")

	_, ok, _ := f.push(1, "105")
	assert.False(t, ok)
}

func TestEvaluateSkipsZeroClose(t *testing.T) {
	f := newFeed(0.05, 2)
	f.pushAll("100", "0")

	alert, ok, _ := f.push(2, "110")
	require.True(t, ok)
	assert.Equal(t, 2, alert.MinutesSpan)
}

func TestEvaluateEmptyWindow(t *testing.T) {
	f := newFeed(0.05, 10)

	_, ok, _ := f.push(0, "100")
	assert.False(t, ok)
}
