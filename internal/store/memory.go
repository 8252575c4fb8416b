package store

import (
	"context"
	"sync"
	"time"

	"github.com/catalyst/userkey/internal/core"
)

var _ core.KeyStore = (*MemoryKeyStore)(nil)

// MemoryKeyStore keeps key records in memory, keyed by (scope, value).
// Suitable for tests and single-process deployments.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]core.KeyRecord
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys: make(map[string]core.KeyRecord),
	}
}

func mapKey(scope, value string) string {
	return scope + "\x00" + value
}

func (s *MemoryKeyStore) Insert(_ context.Context, rec core.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[mapKey(rec.Scope, rec.Value)] = rec
	return nil
}

func (s *MemoryKeyStore) FindByValue(_ context.Context, scope, value string) (*core.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[mapKey(scope, value)]
	if !ok {
		return nil, core.ErrInvalidKey
	}
	return &rec, nil
}

func (s *MemoryKeyStore) DeleteForSubject(_ context.Context, scope, subjectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for k, rec := range s.keys {
		if rec.Scope == scope && rec.SubjectID == subjectID {
			delete(s.keys, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryKeyStore) DeleteExpired(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var deleted int64
	for k, rec := range s.keys {
		if rec.Scope == scope && rec.ValidUntil.Before(now) {
			delete(s.keys, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryKeyStore) ListActive(_ context.Context, scope string) ([]core.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	active := make([]core.KeyRecord, 0)
	for _, rec := range s.keys {
		if rec.Scope == scope && rec.ValidUntil.After(now) {
			active = append(active, rec)
		}
	}
	return active, nil
}
