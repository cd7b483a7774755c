package postgres

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewConfigFromEnv() *Config {
	return &Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     os.Getenv("POSTGRES_PORT"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_DB"),
		SSLMode:  os.Getenv("POSTGRES_SSLMODE"),
	}
}

// Setup fills unset fields with local development defaults.
func (c *Config) Setup() *Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.User == "" {
		c.User = "postgres"
	}
	if c.DBName == "" {
		c.DBName = "stocks"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return c
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// String is the DSN without the password, safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.DBName, c.SSLMode)
}

func NewDB(ctx context.Context, cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: can't connect to postgres", err)
	}
	return db, nil
}

const _createAlertsTable = `
CREATE TABLE IF NOT EXISTS alerts (
    id           UUID PRIMARY KEY,
    ticker       TEXT        NOT NULL,
    from_price   NUMERIC     NOT NULL,
    to_price     NUMERIC     NOT NULL,
    percent_diff NUMERIC     NOT NULL,
    minutes_span INTEGER     NOT NULL,
    direction    TEXT        NOT NULL,
    candle_time  TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS alerts_ticker_candle_time_idx ON alerts (ticker, candle_time);`

func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, _createAlertsTable); err != nil {
		return fmt.Errorf("%w: can't create alerts table", err)
	}
	return nil
}

const _insertAlert = `
INSERT INTO alerts (id, ticker, from_price, to_price, percent_diff, minutes_span, direction, candle_time)
VALUES (:id, :ticker, :from_price, :to_price, :percent_diff, :minutes_span, :direction, :candle_time)
ON CONFLICT (id) DO NOTHING`

func PrepareInsertAlert(ctx context.Context, db *sqlx.DB) (*sqlx.NamedStmt, error) {
	stmt, err := db.PrepareNamedContext(ctx, _insertAlert)
	if err != nil {
		return nil, fmt.Errorf("%w: can't prepare insert alert stmt", err)
	}
	return stmt, nil
}
