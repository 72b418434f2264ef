package stats

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/larriantoniy/tg_forward_bot/internal/config"
	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/ports"
)

const (
	fieldForwarded = "forwarded"
	fieldFailed    = "failed"
)

// New выбирает бэкенд счётчиков по конфигу
func New(cfg config.StatsConfig, logger *slog.Logger) (ports.ForwardStats, error) {
	switch cfg.Backend {
	case config.StatsRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	case config.StatsBadger:
		return NewBadger(cfg.BadgerDir, logger)
	case config.StatsMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown stats backend %q", cfg.Backend)
	}
}

func outcome(ok bool) string {
	if ok {
		return fieldForwarded
	}
	return fieldFailed
}

// counterField кодирует пару (чат, результат) как "<chat_id>:<forwarded|failed>"
func counterField(dstChatID int64, ok bool) string {
	return strconv.FormatInt(dstChatID, 10) + ":" + outcome(ok)
}

// addCounter разбирает counterField и прибавляет n к нужному счётчику
func addCounter(totals map[int64]domain.ForwardCounts, field string, n uint64) error {
	idx := strings.LastIndexByte(field, ':')
	if idx < 0 {
		return fmt.Errorf("malformed counter %q", field)
	}
	chatID, err := strconv.ParseInt(field[:idx], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed counter %q: %w", field, err)
	}
	c := totals[chatID]
	switch field[idx+1:] {
	case fieldForwarded:
		c.Forwarded += n
	case fieldFailed:
		c.Failed += n
	default:
		return fmt.Errorf("malformed counter %q", field)
	}
	totals[chatID] = c
	return nil
}
