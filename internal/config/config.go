package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	"gopkg.in/yaml.v3"
)

const (
	InstrumentTypeShare = "share"
	InstrumentTypeEtf   = "etf"
)

var ErrInvalidConfig = errors.New("invalid config")

type TelegramConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Token            string `yaml:"-"`
	ClientChannelId  string `yaml:"client_channel_id"`
	ServiceChannelId string `yaml:"service_channel_id"`
	QueueSize        int    `yaml:"queue_size"`
}

type RedisJournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Key     string `yaml:"key"`
	MaxLen  int64  `yaml:"max_len"`
}

type PostgresJournalConfig struct {
	Enabled bool `yaml:"enabled"`
	Workers int  `yaml:"workers"`
}

type JournalConfig struct {
	Redis    RedisJournalConfig    `yaml:"redis"`
	Postgres PostgresJournalConfig `yaml:"postgres"`
}

type AlerterConfig struct {
	Port           string `yaml:"port"`
	InstrumentType string `yaml:"instrument_type"`
	LogLevel       string `yaml:"log_level"`
	TracingEnabled bool   `yaml:"tracing_enabled"`

	PercentChangeThreshold    float64 `yaml:"percent_change_threshold"`
	LookbackMinutes           int     `yaml:"lookback_minutes"`
	MaxConcurrentStreams      int     `yaml:"max_concurrent_streams"`
	MaxInstrumentsPerStream   int     `yaml:"max_instruments_per_stream"`
	HistoryCompactionTrigger  int     `yaml:"history_compaction_trigger"`
	HistoryCompactionTarget   int     `yaml:"history_compaction_target"`
	SchedulingIntervalSeconds int     `yaml:"scheduling_interval_seconds"`
	EventLogSize              int     `yaml:"event_log_size"`

	Telegram TelegramConfig `yaml:"telegram"`
	Journal  JournalConfig  `yaml:"journal"`
}

func (c AlerterConfig) SchedulingInterval() time.Duration {
	return time.Duration(c.SchedulingIntervalSeconds) * time.Second
}

func (c *AlerterConfig) setDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.InstrumentType == "" {
		c.InstrumentType = InstrumentTypeShare
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PercentChangeThreshold == 0 {
		c.PercentChangeThreshold = 0.05
	}
	if c.LookbackMinutes == 0 {
		c.LookbackMinutes = 10
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = 4
	}
	if c.MaxInstrumentsPerStream == 0 {
		c.MaxInstrumentsPerStream = 300
	}
	if c.HistoryCompactionTrigger == 0 {
		c.HistoryCompactionTrigger = 100
	}
	if c.HistoryCompactionTarget == 0 {
		c.HistoryCompactionTarget = 50
	}
	if c.SchedulingIntervalSeconds == 0 {
		c.SchedulingIntervalSeconds = 60
	}
	if c.EventLogSize == 0 {
		c.EventLogSize = 200
	}
	if c.Telegram.QueueSize == 0 {
		c.Telegram.QueueSize = 100
	}
	if c.Journal.Redis.Key == "" {
		c.Journal.Redis.Key = "stocks-alerter:alerts"
	}
	if c.Journal.Redis.MaxLen == 0 {
		c.Journal.Redis.MaxLen = 1000
	}
	if c.Journal.Postgres.Workers == 0 {
		c.Journal.Postgres.Workers = 2
	}
}

func (c AlerterConfig) Validate() error {
	if c.PercentChangeThreshold <= 0 {
		return fmt.Errorf("%w: percent_change_threshold=%v must be positive", ErrInvalidConfig, c.PercentChangeThreshold)
	}
	if c.LookbackMinutes < 1 {
		return fmt.Errorf("%w: lookback_minutes=%d must be at least 1", ErrInvalidConfig, c.LookbackMinutes)
	}
	if c.MaxConcurrentStreams < 1 {
		return fmt.Errorf("%w: max_concurrent_streams=%d must be at least 1", ErrInvalidConfig, c.MaxConcurrentStreams)
	}
	if c.MaxInstrumentsPerStream < 1 {
		return fmt.Errorf("%w: max_instruments_per_stream=%d must be at least 1", ErrInvalidConfig, c.MaxInstrumentsPerStream)
	}
	if c.HistoryCompactionTarget < 1 {
		return fmt.Errorf("%w: history_compaction_target=%d must be at least 1", ErrInvalidConfig, c.HistoryCompactionTarget)
	}
	if c.HistoryCompactionTrigger <= c.HistoryCompactionTarget {
		return fmt.Errorf("%w: history_compaction_trigger=%d must be greater than target=%d",
			ErrInvalidConfig, c.HistoryCompactionTrigger, c.HistoryCompactionTarget)
	}
	if c.SchedulingIntervalSeconds < 1 {
		return fmt.Errorf("%w: scheduling_interval_seconds=%d must be at least 1", ErrInvalidConfig, c.SchedulingIntervalSeconds)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("%w: port must be a number", errors.Join(ErrInvalidConfig, err))
	}
	switch c.InstrumentType {
	case InstrumentTypeShare, InstrumentTypeEtf:
	default:
		return fmt.Errorf("%w: unknown instrument_type %q", ErrInvalidConfig, c.InstrumentType)
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("%w: empty telegram bot token", ErrInvalidConfig)
	}
	if c.Journal.Redis.Enabled && c.Journal.Redis.Addr == "" {
		return fmt.Errorf("%w: empty redis journal addr", ErrInvalidConfig)
	}

	return nil
}

func LoadAlerterConfig(filename string) (AlerterConfig, error) {
	var cfg AlerterConfig
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func LoadInvestConfig(filename string) (investgo.Config, error) {
	cfg, err := investgo.LoadConfig(filename)
	if err != nil {
		return investgo.Config{}, fmt.Errorf("%w: can't load config", err)
	}

	if token := os.Getenv("T_INVEST_API_TOKEN"); token != "" {
		cfg.Token = token
	}
	if cfg.Token == "" {
		return investgo.Config{}, fmt.Errorf("empty t-invest api token")
	}

	return cfg, nil
}
