// Package offline holds the terminal-side fallback for the cash session: a
// single persistent slot that keeps one open session per (empresa, terminal)
// alive while the central backend is unreachable.
package offline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Store.Get when the key holds no value.
var ErrNotFound = errors.New("offline: key not found")

// Store is the minimal key-value contract the session cache needs. Keeping it
// this small lets the controller run against the local redis instance, a
// plain file on disk, or an in-memory fake in tests.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ── Redis store ───────────────────────────────────────────────────────────────

// RedisStore persists slots in the terminal's local redis instance.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	// No TTL: the slot must survive until the session is closed or replaced.
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// ── File store ────────────────────────────────────────────────────────────────

// FileStore persists slots as JSON files under a directory, for terminals
// that run without a local redis. Writes are atomic (temp file + rename) so a
// power cut mid-save leaves either the old slot or the new one, never a torn
// file.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("offline: create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	dst := s.path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("offline: write slot: %w", err)
	}
	return os.Rename(tmp, dst)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) path(key string) string {
	// Keys are namespaced with ':'; flatten to a safe file name.
	return filepath.Join(s.dir, strings.ReplaceAll(key, ":", "_")+".json")
}
