package identity

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/catalyst/userkey/internal/core"
)

var _ core.IdentityStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory core.IdentityStore. It stands in for the
// host system's user directory in tests and single-process deployments.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int
	subjects map[string]core.Subject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		subjects: make(map[string]core.Subject),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*core.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[id]
	if !ok || subj.Deleted {
		return nil, core.ErrSubjectNotFound
	}
	return &subj, nil
}

func (s *MemoryStore) FindByField(_ context.Context, field core.MappingField, value string) (*core.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subj := range s.subjects {
		if subj.Deleted {
			continue
		}
		var candidate string
		switch field {
		case core.MapByUsername:
			candidate = subj.Username
		case core.MapByEmail:
			candidate = subj.Email
		case core.MapByIDNumber:
			candidate = subj.IDNumber
		}
		if candidate != "" && strings.EqualFold(candidate, value) {
			return &subj, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subj := range s.subjects {
		if subj.Deleted || subj.ID == excludeID {
			continue
		}
		if strings.EqualFold(subj.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subj := range s.subjects {
		if subj.Deleted || subj.ID == excludeID {
			continue
		}
		if strings.EqualFold(subj.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Create(_ context.Context, subj core.Subject) (*core.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subj.ID = strconv.Itoa(s.nextID)
	s.nextID++
	s.subjects[subj.ID] = subj
	return &subj, nil
}

func (s *MemoryStore) Update(_ context.Context, subj core.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[subj.ID]; !ok {
		return core.ErrSubjectNotFound
	}
	s.subjects[subj.ID] = subj
	return nil
}

// Delete marks a subject deleted. Used by tests exercising keys bound
// to since-deleted subjects.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subj, ok := s.subjects[id]; ok {
		subj.Deleted = true
		s.subjects[id] = subj
	}
}
