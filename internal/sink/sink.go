// Package sink delivers alerts and status summaries to the outside world.
// Implementations never return delivery errors to the caller; they log them.
package sink

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/shopspring/decimal"
)

type EventSink interface {
	NotifyAlert(ctx context.Context, alert model.AlertEvent)
	NotifyStatus(ctx context.Context, text string)
}

type composite []EventSink

// Compose fans every notification out to sinks in order. Nil sinks are skipped.
func Compose(sinks ...EventSink) EventSink {
	c := make(composite, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			c = append(c, s)
		}
	}
	return c
}

func (c composite) NotifyAlert(ctx context.Context, alert model.AlertEvent) {
	for _, s := range c {
		s.NotifyAlert(ctx, alert)
	}
}

func (c composite) NotifyStatus(ctx context.Context, text string) {
	for _, s := range c {
		s.NotifyStatus(ctx, text)
	}
}

// Console writes everything to the application log.
type Console struct {
	logger logger.Logger
}

func NewConsole(logger logger.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	c.logger.Infof("alert: %s", FormatAlert(alert))
}

func (c *Console) NotifyStatus(_ context.Context, text string) {
	c.logger.Infof("status: %s", text)
}

var _hundred = decimal.NewFromInt(100)

func indicator(d model.Direction) string {
	if d == model.Down {
		return "🔴"
	}
	return "🟢"
}

func percent(alert model.AlertEvent) string {
	return alert.PercentDiff.Abs().Mul(_hundred).StringFixed(2)
}

// FormatAlert renders an alert as plain text, e.g. "🟢 7.00% SBER 100 → 107 in 1 min".
func FormatAlert(alert model.AlertEvent) string {
	return fmt.Sprintf("%s %s%% %s %s → %s in %d min",
		indicator(alert.Direction), percent(alert), alert.Ticker,
		alert.FromPrice, alert.ToPrice, alert.MinutesSpan)
}

// FormatAlertMarkdown is FormatAlert with the ticker linked to its broker page.
func FormatAlertMarkdown(alert model.AlertEvent) string {
	return fmt.Sprintf("%s %s%% [%s](%s) %s → %s in %d min",
		indicator(alert.Direction), percent(alert), alert.Ticker, TickerLink(alert.Ticker),
		alert.FromPrice, alert.ToPrice, alert.MinutesSpan)
}

func TickerLink(ticker string) string {
	return fmt.Sprintf("https://www.tbank.ru/invest/stocks/%s/", ticker)
}

func FormatStatus(s model.StatusSummary) string {
	return fmt.Sprintf("streams %d/%d (available %d), instruments: %d subscribed, %d pending, %d not subscribed, %.2f samples/s",
		s.ActiveStreams, s.MaxStreams, s.AvailableStreams,
		s.Subscribed, s.Pending, s.NotSubscribed, s.SamplesPerSecond)
}
