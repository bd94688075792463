package cache

import (
	"context"
	"sync"
	"time"
)

// Namespaces for rendered report text. Keys are unique within a namespace;
// the same city may appear in both without collision.
const (
	NamespaceCurrent  = "current"
	NamespaceForecast = "forecast"
)

// DefaultWindow is the expiry window for cached reports. An entry older than
// the window reads as absent.
const DefaultWindow = 30 * time.Minute

// Store is the interface for rendered-text caching backends.
// Get returns the stored text only while it is younger than the expiry window;
// absence is a normal outcome, not an error. Set unconditionally replaces any
// prior entry for the key.
type Store interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, text string) error
}

// entry holds rendered text with its creation time. Entries are immutable;
// a fresh Set replaces the whole entry.
type entry struct {
	text      string
	createdAt time.Time
}

// InMemoryStore implements Store with per-namespace maps and read-time expiry.
// Expired entries are left in place and overwritten by a later Set; when
// maxEntries is positive, Set evicts the oldest entry in the namespace once
// the bound is exceeded. Safe for concurrent use.
type InMemoryStore struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	namespaces map[string]map[string]entry

	now func() time.Time // overridable in tests
}

// NewInMemoryStore creates an InMemoryStore. window <= 0 falls back to
// DefaultWindow. maxEntries <= 0 means unbounded.
func NewInMemoryStore(window time.Duration, maxEntries int) *InMemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemoryStore{
		window:     window,
		maxEntries: maxEntries,
		namespaces: make(map[string]map[string]entry),
		now:        time.Now,
	}
}

// Get returns the cached text for key if present and younger than the expiry
// window. Returns ("", false, nil) on miss or expiry; the stale entry is not
// removed.
func (s *InMemoryStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	e, ok := ns[key]
	if !ok {
		return "", false, nil
	}
	if s.now().Sub(e.createdAt) >= s.window {
		return "", false, nil
	}
	return e.text, true, nil
}

// Set stores text under key with the current timestamp, replacing any prior
// entry regardless of its validity.
func (s *InMemoryStore) Set(ctx context.Context, namespace, key, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]entry)
		s.namespaces[namespace] = ns
	}
	ns[key] = entry{text: text, createdAt: s.now()}

	if s.maxEntries > 0 && len(ns) > s.maxEntries {
		s.evictOldest(ns, key)
	}
	return nil
}

// evictOldest removes the oldest-by-timestamp entry in ns, skipping the key
// that was just written.
func (s *InMemoryStore) evictOldest(ns map[string]entry, justWritten string) {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range ns {
		if k == justWritten {
			continue
		}
		if !found || e.createdAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.createdAt
			found = true
		}
	}
	if found {
		delete(ns, oldestKey)
	}
}

// Len reports the number of entries in a namespace, expired ones included.
func (s *InMemoryStore) Len(namespace string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.namespaces[namespace])
}
