// Package detector finds percent price moves between the newest candle of an
// instrument and its recent history.
package detector

import (
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/shopspring/decimal"
)

// Window is the view of an instrument's history the detector needs.
type Window interface {
	// Candidates returns samples newest first without the one starting at exclude.
	Candidates(exclude time.Time) []model.CandleSample
	MarkNotified(start time.Time)
}

type Detector struct {
	threshold decimal.Decimal
	lookback  int
}

func New(threshold float64, lookbackMinutes int) *Detector {
	return &Detector{
		threshold: decimal.NewFromFloat(threshold),
		lookback:  lookbackMinutes,
	}
}

// Evaluate scans the window from the newest candle backwards and reports the
// first close that differs from sample.Close by more than the threshold.
//
// The scan stops at the first breach, after lookback candles, or right after a
// candle that already produced an alert: that candle becomes the new baseline
// and nothing older is consulted. On a breach both sample and its stored copy
// in the window are marked notified.
func (d *Detector) Evaluate(ticker string, sample *model.CandleSample, window Window) (model.AlertEvent, bool) {
	if sample.Notified {
		return model.AlertEvent{}, false
	}

	scanned := 0
	for _, candidate := range window.Candidates(sample.StartTime) {
		if !candidate.Close.IsZero() {
			diff := sample.Close.Sub(candidate.Close).Div(candidate.Close)
			if diff.Abs().GreaterThan(d.threshold) {
				sample.Notified = true
				window.MarkNotified(sample.StartTime)

				direction := model.Up
				if diff.IsNegative() {
					direction = model.Down
				}

				return model.AlertEvent{
					Ticker:      ticker,
					FromPrice:   candidate.Close,
					ToPrice:     sample.Close,
					PercentDiff: diff,
					MinutesSpan: scanned + 1,
					Direction:   direction,
					CandleTime:  sample.StartTime,
				}, true
			}
		}

		scanned++
		if scanned == d.lookback {
			return model.AlertEvent{}, false
		}
		if candidate.Notified {
			return model.AlertEvent{}, false
		}
	}

	return model.AlertEvent{}, false
}
