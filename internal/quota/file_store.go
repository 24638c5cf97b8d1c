package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// Locker is implemented by stores shared between processes. Gate holds the
// lock across each load and save so concurrent processes never lose updates.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// FileStore keeps quota state in a JSON document on local disk, keyed by
// namespace so several counters can share one file.
type FileStore struct {
	path string
	key  string

	mu   sync.Mutex
	lock *flock.Flock
}

func NewFileStore(path, key string) *FileStore {
	storeKey := strings.TrimSpace(key)
	if storeKey == "" {
		storeKey = defaultStoreKey
	}
	return &FileStore{
		path: path,
		key:  storeKey,
		lock: flock.New(path + ".lock"),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create quota dir: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire quota lock: %w", err)
	}
	if !ok {
		s.mu.Unlock()
		return nil, errors.New("acquire quota lock: not acquired")
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

func (s *FileStore) Load(context.Context) (State, bool, error) {
	entries, err := s.readAll()
	if err != nil {
		return State{}, false, err
	}
	state, found := entries[s.key]
	return state, found, nil
}

func (s *FileStore) Save(_ context.Context, state State) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[s.key] = state
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create quota dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write quota state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write quota state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write quota state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write quota state: %w", err)
	}
	return nil
}

// readAll returns every namespaced entry in the file. A missing or corrupt
// file reads as empty; the next save rewrites it.
func (s *FileStore) readAll() (map[string]State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]State{}, nil
		}
		return nil, fmt.Errorf("read quota state: %w", err)
	}
	entries := map[string]State{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[string]State{}, nil
	}
	return entries, nil
}
