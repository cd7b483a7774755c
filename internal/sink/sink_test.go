package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	alerts   []model.AlertEvent
	statuses []string
}

func (r *recordingSink) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingSink) NotifyStatus(_ context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, text)
}

func upAlert() model.AlertEvent {
	return model.AlertEvent{
		Id:          "a1",
		Ticker:      "SBER",
		FromPrice:   decimal.NewFromInt(100),
		ToPrice:     decimal.NewFromInt(107),
		PercentDiff: decimal.RequireFromString("0.07"),
		MinutesSpan: 1,
		Direction:   model.Up,
		CandleTime:  time.Date(2024, 3, 1, 10, 3, 0, 0, time.UTC),
	}
}

func TestFormatAlert(t *testing.T) {
	assert.Equal(t, "🟢 7.00% SBER 100 → 107 in 1 min", FormatAlert(upAlert()))

	down := model.AlertEvent{
		Ticker:      "GAZP",
		FromPrice:   decimal.RequireFromString("150.5"),
		ToPrice:     decimal.RequireFromString("140.2"),
		PercentDiff: decimal.RequireFromString("-0.068438538"),
		MinutesSpan: 4,
		Direction:   model.Down,
	}
	assert.Equal(t, "🔴 6.84% GAZP 150.5 → 140.2 in 4 min", FormatAlert(down))

	assert.Equal(t,
		"🟢 7.00% [SBER](https://www.tbank.ru/invest/stocks/SBER/) 100 → 107 in 1 min",
		FormatAlertMarkdown(upAlert()))
}

func TestFormatStatus(t *testing.T) {
	text := FormatStatus(model.StatusSummary{
		MaxStreams:       4,
		ActiveStreams:    3,
		AvailableStreams: 1,
		NotSubscribed:    10,
		Pending:          90,
		Subscribed:       600,
		SamplesPerSecond: 12.5,
	})

	assert.Equal(t, "streams 3/4 (available 1), instruments: 600 subscribed, 90 pending, 10 not subscribed, 12.50 samples/s", text)
}

func TestCompose(t *testing.T) {
	first, second := &recordingSink{}, &recordingSink{}
	s := Compose(first, nil, second)

	s.NotifyAlert(context.Background(), upAlert())
	s.NotifyStatus(context.Background(), "App started")

	for _, r := range []*recordingSink{first, second} {
		require.Len(t, r.alerts, 1)
		assert.Equal(t, "SBER", r.alerts[0].Ticker)
		assert.Equal(t, []string{"App started"}, r.statuses)
	}
}

func TestEventLogRecent(t *testing.T) {
	l := NewEventLog(3)
	ctx := context.Background()

	assert.Empty(t, l.Recent(10, ""))

	l.NotifyStatus(ctx, "s1")
	l.NotifyAlert(ctx, upAlert())
	l.NotifyStatus(ctx, "s2")
	l.NotifyStatus(ctx, "s3")

	all := l.Recent(10, "")
	require.Len(t, all, 3)
	assert.Equal(t, "s3", all[0].Text)
	assert.Equal(t, "s2", all[1].Text)
	assert.Equal(t, KindAlert, all[2].Kind)
	require.NotNil(t, all[2].Alert)
	assert.Equal(t, "a1", all[2].Alert.Id)

	alerts := l.Recent(10, KindAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "🟢 7.00% SBER 100 → 107 in 1 min", alerts[0].Text)

	assert.Len(t, l.Recent(1, ""), 1)
	assert.Nil(t, l.Recent(0, ""))
}

func TestEventLogWrapsAround(t *testing.T) {
	l := NewEventLog(2)
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		l.NotifyStatus(ctx, s)
	}

	got := l.Recent(5, KindStatus)
	require.Len(t, got, 2)
	assert.Equal(t, "e", got[0].Text)
	assert.Equal(t, "d", got[1].Text)
}
