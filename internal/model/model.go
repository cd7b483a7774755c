package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Instrument struct {
	Uid    string `json:"uid"`
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

type SubscriptionState int

const (
	NotSubscribed SubscriptionState = iota
	Pending
	Subscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case NotSubscribed:
		return "not_subscribed"
	case Pending:
		return "pending"
	case Subscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// CandleSample is the latest known OHLC for one minute of one instrument.
// Notified is the only field that changes after creation.
type CandleSample struct {
	StartTime time.Time       `json:"start_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Notified  bool            `json:"notified"`
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

type AlertEvent struct {
	Id          string          `json:"id" db:"id"`
	Ticker      string          `json:"ticker" db:"ticker"`
	FromPrice   decimal.Decimal `json:"from_price" db:"from_price"`
	ToPrice     decimal.Decimal `json:"to_price" db:"to_price"`
	PercentDiff decimal.Decimal `json:"percent_diff" db:"percent_diff"`
	MinutesSpan int             `json:"minutes_span" db:"minutes_span"`
	Direction   Direction       `json:"direction" db:"direction"`
	CandleTime  time.Time       `json:"candle_time" db:"candle_time"`
}

// StatusSummary is the per-tick view of the subscription fleet.
type StatusSummary struct {
	MaxStreams       int     `json:"max_streams"`
	ActiveStreams    int     `json:"active_streams"`
	AvailableStreams int     `json:"available_streams"`
	NotSubscribed    int     `json:"not_subscribed"`
	Pending          int     `json:"pending"`
	Subscribed       int     `json:"subscribed"`
	SamplesPerSecond float64 `json:"samples_per_second"`
}
