package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

const redisKeyPrefix = "tg_forward_bot:stats:"

// Redis хранит счётчики в хеше "tg_forward_bot:stats:<phone>"
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedis(addr, password string, db int, logger *slog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	logger.Info("redis stats backend connected", "addr", addr, "db", db)
	return &Redis{rdb: rdb, logger: logger}, nil
}

func (r *Redis) Record(ctx context.Context, phone string, dstChatID int64, ok bool) error {
	return r.rdb.HIncrBy(ctx, redisKeyPrefix+phone, counterField(dstChatID, ok), 1).Err()
}

func (r *Redis) Totals(ctx context.Context, phone string) (map[int64]domain.ForwardCounts, error) {
	fields, err := r.rdb.HGetAll(ctx, redisKeyPrefix+phone).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make(map[int64]domain.ForwardCounts)
	for field, raw := range fields {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			r.logger.Warn("skip malformed counter", "field", field, "value", raw)
			continue
		}
		if err := addCounter(out, field, n); err != nil {
			r.logger.Warn("skip malformed counter", "field", field, "error", err)
		}
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
