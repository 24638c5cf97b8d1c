package quota

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultStoreKey = "screenscape:ai-quota:v1"

// State is the persisted quota window. ResetTime is epoch milliseconds.
type State struct {
	Count     int   `json:"count"`
	ResetTime int64 `json:"resetTime"`
}

type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
}

type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if client == nil {
		return nil
	}
	storeKey := strings.TrimSpace(key)
	if storeKey == "" {
		storeKey = defaultStoreKey
	}
	return &RedisStore{
		client: client,
		key:    storeKey,
	}
}

func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Load(ctx context.Context) (State, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt blob is treated like a missing one; the next save overwrites it.
		return State{}, false, nil
	}
	return state, true, nil
}

func (s *RedisStore) Save(ctx context.Context, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}

type MemoryStore struct {
	mu    sync.Mutex
	state State
	found bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.found, nil
}

func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.found = true
	return nil
}
