package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/quorum/pkg/audit"
)

// MemoryStorage keeps audit entries in a slice. Used by tests and by the CLI
// when no database path is configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*audit.Entry
	nextSeq int64
	closed  bool
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{nextSeq: 1}
}

// Append stores a copy of e and assigns its sequence number.
func (s *MemoryStorage) Append(ctx context.Context, e *audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return audit.NewStorageError("memory", "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audit.NewStorageError("memory", "append", errClosed)
	}
	e.Sequence = s.nextSeq
	s.nextSeq++
	s.entries = append(s.entries, e.Clone())
	return nil
}

// Query returns copies of the entries matching q in canonical order.
func (s *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error) {
	if q == nil {
		q = &audit.Query{}
	}

	s.mu.RLock()
	var results []*audit.Entry
	for _, e := range s.entries {
		if matches(e, q) {
			results = append(results, e.Clone())
		}
	}
	s.mu.RUnlock()

	less := canonicalLess
	if q.BySequence {
		less = func(a, b *audit.Entry) bool { return a.Sequence < b.Sequence }
	}
	sort.SliceStable(results, func(i, j int) bool {
		if q.Descending {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})

	return paginate(results, q.Offset, q.Limit), nil
}

// Count returns the number of entries matching q.
func (s *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if q == nil {
		q = &audit.Query{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if matches(e, q) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds unless the storage is closed.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return audit.NewStorageError("memory", "ping", errClosed)
	}
	return nil
}

// Close marks the storage closed. Entries remain readable.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func canonicalLess(a, b *audit.Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Sequence < b.Sequence
}

func matches(e *audit.Entry, q *audit.Query) bool {
	if q.ProposalID != "" && e.ProposalID != q.ProposalID {
		return false
	}
	if q.Actor != "" && e.Actor != q.Actor {
		return false
	}
	if q.EntityID != "" && e.EntityID != q.EntityID {
		return false
	}
	if q.AfterSequence > 0 && e.Sequence <= q.AfterSequence {
		return false
	}
	if q.StartTime != nil && e.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && e.Timestamp.After(*q.EndTime) {
		return false
	}
	if len(q.Actions) > 0 {
		found := false
		for _, a := range q.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func paginate(entries []*audit.Entry, offset, limit int) []*audit.Entry {
	if offset >= len(entries) {
		return []*audit.Entry{}
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
