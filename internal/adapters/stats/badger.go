package stats

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

const badgerKeyPrefix = "forwardedMsgs:"

// Badger хранит счётчики во встроенной базе, ключ "forwardedMsgs:<phone>:<chat_id>:<outcome>",
// значение: uint64 big endian
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadger(dir string, logger *slog.Logger) (*Badger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", dir, err)
	}
	logger.Info("badger stats backend opened", "dir", dir)
	return &Badger{db: db, logger: logger}, nil
}

func phonePrefix(phone string) []byte {
	return []byte(badgerKeyPrefix + phone + ":")
}

func uint64ToBytes(i uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], i)
	return buf[:]
}

func bytesToUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (b *Badger) Record(_ context.Context, phone string, dstChatID int64, ok bool) error {
	key := append(phonePrefix(phone), counterField(dstChatID, ok)...)
	return b.db.Update(func(txn *badger.Txn) error {
		var current uint64
		item, err := txn.Get(key)
		switch {
		case err == nil:
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			current = bytesToUint64(val)
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		return txn.Set(key, uint64ToBytes(current+1))
	})
}

func (b *Badger) Totals(_ context.Context, phone string) (map[int64]domain.ForwardCounts, error) {
	prefix := phonePrefix(phone)
	out := make(map[int64]domain.ForwardCounts)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			field := string(item.Key()[len(prefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := addCounter(out, field, bytesToUint64(val)); err != nil {
				b.logger.Warn("skip malformed counter", "key", string(item.Key()), "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger view: %w", err)
	}
	return out, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
