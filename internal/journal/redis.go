// Package journal keeps a durable record of emitted alerts next to the
// notification channels. Candle history itself is never persisted.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/go-redis/redis/v8"
)

const _redisTimeout = 2 * time.Second

// Redis keeps the newest maxLen alerts in a capped list, newest first.
type Redis struct {
	client *redis.Client
	key    string
	maxLen int64

	logger logger.Logger
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

func NewRedis(client *redis.Client, key string, maxLen int64, logger logger.Logger) *Redis {
	if maxLen <= 0 {
		maxLen = 1000
	}

	return &Redis{
		client: client,
		key:    key,
		maxLen: maxLen,
		logger: logger,
	}
}

func (r *Redis) NotifyAlert(ctx context.Context, alert model.AlertEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _redisTimeout)
	defer cancel()

	if err := r.Append(ctx, alert); err != nil {
		r.logger.Errorf("%s: can't journal alert %s", err, alert.Id)
	}
}

func (r *Redis) NotifyStatus(context.Context, string) {}

func (r *Redis) Append(ctx context.Context, alert model.AlertEvent) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("%w: can't marshal alert", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: can't push alert to %s", err, r.key)
	}
	return nil
}

// Recent returns up to n alerts, newest first.
func (r *Redis) Recent(ctx context.Context, n int64) ([]model.AlertEvent, error) {
	if n <= 0 {
		return nil, nil
	}

	items, err := r.client.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: can't read %s", err, r.key)
	}

	alerts := make([]model.AlertEvent, 0, len(items))
	for _, item := range items {
		var a model.AlertEvent
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			r.logger.Warnf("%s: skip malformed journal entry", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: can't ping redis", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
