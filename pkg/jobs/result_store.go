package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ResultEnvelope is the tagged result cell value. A failed job is
// distinguishable from a pending one: pending is the absence of a cell,
// failure is a cell with StatusError.
type ResultEnvelope struct {
	Status  string          `json:"status"`
	Value   json.RawMessage `json:"value,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ResultStore holds one result cell per job key. Implementations must be
// usable from a different process than the one that submitted the job, and
// GetDel must read and clear the cell as one atomic operation so concurrent
// pollers can never both observe the same value.
type ResultStore interface {
	Set(ctx context.Context, key string, envelope *ResultEnvelope, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (*ResultEnvelope, bool, error)
}

const resultKeyPrefix = "dedupe:result:"

type RedisResultStore struct {
	rdb *redis.Client
}

func NewRedisResultStore(rdb *redis.Client) *RedisResultStore {
	return &RedisResultStore{rdb: rdb}
}

func (s *RedisResultStore) Set(ctx context.Context, key string, envelope *ResultEnvelope, ttl time.Duration) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("jobs: failed to marshal result envelope: %w", err)
	}
	return s.rdb.Set(ctx, resultKeyPrefix+key, data, ttl).Err()
}

func (s *RedisResultStore) GetDel(ctx context.Context, key string) (*ResultEnvelope, bool, error) {
	data, err := s.rdb.GetDel(ctx, resultKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var envelope ResultEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("jobs: corrupt result envelope for %s: %w", key, err)
	}
	return &envelope, true, nil
}

// MemoryResultStore is the in-process store used in tests and single-node
// development without Redis.
type MemoryResultStore struct {
	mu    sync.Mutex
	cells map[string]memoryCell
}

type memoryCell struct {
	envelope  *ResultEnvelope
	expiresAt time.Time
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{cells: make(map[string]memoryCell)}
}

func (s *MemoryResultStore) Set(ctx context.Context, key string, envelope *ResultEnvelope, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell := memoryCell{envelope: envelope}
	if ttl > 0 {
		cell.expiresAt = time.Now().Add(ttl)
	}
	s.cells[key] = cell
	return nil
}

func (s *MemoryResultStore) GetDel(ctx context.Context, key string) (*ResultEnvelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.cells, key)
	if !cell.expiresAt.IsZero() && time.Now().After(cell.expiresAt) {
		return nil, false, nil
	}
	return cell.envelope, true, nil
}
