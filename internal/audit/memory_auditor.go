package audit

import (
	"sync"

	"github.com/catalyst/userkey/internal/core"
)

// maxBufferedEntries bounds the in-memory audit trail. Key events are
// frequent and small; older entries are dropped once the cap is hit.
const maxBufferedEntries = 10000

var _ core.Auditor = (*InMemoryAuditor)(nil)
var _ core.AuditSearcher = (*InMemoryAuditor)(nil)

// InMemoryAuditor keeps the audit trail in a bounded in-memory buffer.
// Suitable for single-process deployments and the admin audit API.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if len(i.entries) > maxBufferedEntries {
		i.entries = i.entries[len(i.entries)-maxBufferedEntries:]
	}
	return nil
}

// GetRecent returns up to limit entries, newest last.
func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.entries) {
		limit = len(i.entries)
	}
	start := len(i.entries) - limit
	entries := make([]core.AuditEntry, limit)
	copy(entries, i.entries[start:])

	return entries, nil
}

// Find returns up to limit matching entries, newest last.
func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	return matches, nil
}

func (i *InMemoryAuditor) Close() error {
	return nil
}
