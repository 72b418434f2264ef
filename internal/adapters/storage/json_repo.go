package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/radovskyb/watcher"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

const indent = "    "

// JSONAccountRepo хранит записи аккаунтов одним JSON-массивом в файле ("users.json").
// Все чтения и записи идут через mu: один писатель на процесс.
type JSONAccountRepo struct {
	path         string
	logger       *slog.Logger
	pollInterval time.Duration

	mu sync.Mutex
}

func NewJSONAccountRepo(path string, logger *slog.Logger) *JSONAccountRepo {
	return &JSONAccountRepo{
		path:         path,
		logger:       logger.With("store", path),
		pollInterval: 500 * time.Millisecond,
	}
}

func (r *JSONAccountRepo) Path() string {
	return r.path
}

func (r *JSONAccountRepo) Load(ctx context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *JSONAccountRepo) Save(ctx context.Context, accounts []domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(accounts)
}

func (r *JSONAccountRepo) Update(ctx context.Context, fn func([]domain.Account) ([]domain.Account, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load()
	if err != nil {
		return err
	}
	updated, err := fn(accounts)
	if err != nil {
		return err
	}
	return r.save(updated)
}

// ensure создаёт файл с "[]", если его ещё нет
func (r *JSONAccountRepo) ensure() error {
	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", r.path, err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	r.logger.Info("creating empty account store")
	return os.WriteFile(r.path, []byte("[]"), 0o644)
}

func (r *JSONAccountRepo) load() ([]domain.Account, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	var accounts []domain.Account
	if len(bytes.TrimSpace(data)) == 0 {
		return accounts, nil
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", r.path, err)
	}
	return accounts, nil
}

func (r *JSONAccountRepo) save(accounts []domain.Account) error {
	out := make([]domain.Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.Normalized()
	}
	data, err := json.MarshalIndent(out, "", indent)
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp.Name(), err)
	}
	r.logger.Debug("account store saved", "accounts", len(out))
	return nil
}

// Watch опрашивает файл хранилища и вызывает onChange при каждом изменении.
// Блокируется до отмены ctx.
func (r *JSONAccountRepo) Watch(ctx context.Context, onChange func()) error {
	r.mu.Lock()
	err := r.ensure()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create, watcher.Rename, watcher.Move)
	if err := w.Add(r.path); err != nil {
		return fmt.Errorf("watch %s: %w", r.path, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(r.pollInterval)
	}()
	defer func() {
		w.Close()
		select {
		case <-w.Closed:
		case <-errCh:
		case <-time.After(time.Second):
		}
	}()
	w.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-w.Event:
			r.logger.Debug("account store changed", "op", event.Op.String())
			onChange()
		case err := <-w.Error:
			r.logger.Warn("store watcher error", "error", err)
		case err := <-errCh:
			return err
		}
	}
}
