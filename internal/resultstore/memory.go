package resultstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	frame     []byte
	createdAt time.Time
	expiresAt time.Time // zero never expires
}

// MemoryStore keeps encoded records in a map. Expired records are dropped
// lazily on access.
type MemoryStore struct {
	codec   codec
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func newMemoryStore(c codec, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		codec:   c,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// NewMemoryStore returns an empty store with snappy-compressed frames
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	c, _ := newCodec(true)
	return newMemoryStore(c, ttl)
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// Put stores r
func (s *MemoryStore) Put(ctx context.Context, r *Record) error {
	if err := validateRecord(r); err != nil {
		return err
	}
	frame, err := s.codec.encode(r)
	if err != nil {
		return err
	}

	e := memoryEntry{frame: frame, createdAt: r.CreatedAt}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[r.ID] = e
	s.mu.Unlock()
	return nil
}

// Get returns a decoded copy of the record
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(e) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return s.codec.decode(e.frame)
}

// List returns up to limit records, newest first. A non-positive limit
// returns every record.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.entries[ids[i]], s.entries[ids[j]]
		if a.createdAt.Equal(b.createdAt) {
			return ids[i] < ids[j]
		}
		return a.createdAt.After(b.createdAt)
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	frames := make([][]byte, len(ids))
	for i, id := range ids {
		frames[i] = s.entries[id].frame
	}
	s.mu.Unlock()

	out := make([]*Record, 0, len(frames))
	for _, f := range frames {
		r, err := s.codec.decode(f)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete removes a record
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Close drops every record
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}
