package sipline

import (
	"sync"
	"time"
)

// ttlEntry wraps a stored value with its expiration time.
type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) expired() bool {
	return time.Now().After(e.expiresAt)
}

// ttlStore is an in-memory map whose entries expire. A background loop
// removes expired entries and reports them through the eviction callback.
// Terminated dialogs are kept briefly with a short TTL so retransmitted
// requests still match something.
type ttlStore[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]*ttlEntry[V]
	stopCh  chan struct{}
	onEvict func(key K, value V)
}

// newTTLStore creates a store whose cleanup loop runs every interval.
func newTTLStore[K comparable, V any](interval time.Duration, onEvict func(K, V)) *ttlStore[K, V] {
	s := &ttlStore[K, V]{
		items:   make(map[K]*ttlEntry[V]),
		stopCh:  make(chan struct{}),
		onEvict: onEvict,
	}
	go s.cleanupLoop(interval)
	return s
}

// Set stores a value with the given TTL, replacing any previous entry.
func (s *ttlStore[K, V]) Set(key K, value V, ttl time.Duration) {
	s.mu.Lock()
	s.items[key] = &ttlEntry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Get returns the value and true when the key exists and has not expired.
func (s *ttlStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.items[key]
	if !ok || entry.expired() {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Delete removes a key. Returns true when something was removed.
func (s *ttlStore[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		return true
	}
	return false
}

// Len counts the non-expired entries.
func (s *ttlStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, entry := range s.items {
		if !entry.expired() {
			n++
		}
	}
	return n
}

// ForEach visits every non-expired entry until fn returns false. The
// iteration runs over a snapshot taken under the lock, so fn may call
// Set, Get, or Delete on the store without deadlocking.
func (s *ttlStore[K, V]) ForEach(fn func(key K, value V) bool) {
	type snapshot struct {
		key   K
		value V
	}

	s.mu.RLock()
	entries := make([]snapshot, 0, len(s.items))
	for key, entry := range s.items {
		if entry.expired() {
			continue
		}
		entries = append(entries, snapshot{key, entry.value})
	}
	s.mu.RUnlock()

	for _, e := range entries {
		if !fn(e.key, e.value) {
			break
		}
	}
}

// Close stops the cleanup loop and drops all entries.
func (s *ttlStore[K, V]) Close() {
	close(s.stopCh)
	s.mu.Lock()
	s.items = make(map[K]*ttlEntry[V])
	s.mu.Unlock()
}

func (s *ttlStore[K, V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup removes expired entries, calling onEvict outside the lock.
func (s *ttlStore[K, V]) cleanup() {
	type evicted struct {
		key   K
		value V
	}

	s.mu.Lock()
	var gone []evicted
	for key, entry := range s.items {
		if entry.expired() {
			gone = append(gone, evicted{key, entry.value})
			delete(s.items, key)
		}
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	if onEvict != nil {
		for _, e := range gone {
			onEvict(e.key, e.value)
		}
	}
}
