package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hocvui-edu/hocvui_api/model"
)

// SessionRecord is the one serialized value persisted per client slot. It is
// the whole external protocol surface of session persistence.
type SessionRecord struct {
	Token         string               `json:"token"`
	IdentityID    string               `json:"identity_id,omitempty"`
	State         model.SessionState   `json:"state"`
	GuestProgress *model.GuestProgress `json:"guest_progress,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}

// SessionStore is the injected persistence port of the session manager.
// Load returns (nil, nil) when the slot holds no record.
type SessionStore interface {
	Load(ctx context.Context, slot string) (*SessionRecord, error)
	Save(ctx context.Context, slot string, record *SessionRecord) error
	Clear(ctx context.Context, slot string) error
}

// redisSessionStore keeps one JSON record per slot. Authenticated records
// carry their own expiry through the redis TTL.
type redisSessionStore struct {
	redisSvc *RedisService
	ttl      time.Duration
}

func newRedisSessionStore(redisSvc *RedisService, ttl time.Duration) *redisSessionStore {
	return &redisSessionStore{redisSvc: redisSvc, ttl: ttl}
}

func sessionSlotKey(slot string) string {
	return "session:" + slot
}

func (s *redisSessionStore) Load(ctx context.Context, slot string) (*SessionRecord, error) {
	raw, err := s.redisSvc.Get(ctx, sessionSlotKey(slot))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *redisSessionStore) Save(ctx context.Context, slot string, record *SessionRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.redisSvc.Set(ctx, sessionSlotKey(slot), string(raw), s.ttl)
}

func (s *redisSessionStore) Clear(ctx context.Context, slot string) error {
	return s.redisSvc.Delete(ctx, sessionSlotKey(slot))
}

// memorySessionStore backs tests and single-process deployments without
// redis.
type memorySessionStore struct {
	mu      sync.RWMutex
	records map[string]*SessionRecord
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{records: map[string]*SessionRecord{}}
}

func (s *memorySessionStore) Load(_ context.Context, slot string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[slot]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *memorySessionStore) Save(_ context.Context, slot string, record *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[slot] = &copied
	return nil
}

func (s *memorySessionStore) Clear(_ context.Context, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, slot)
	return nil
}
