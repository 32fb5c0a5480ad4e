package sipline

import (
	"sync"
	"testing"
	"time"
)

func TestTTLStoreSetGet(t *testing.T) {
	store := newTTLStore[string, int](time.Minute, nil)
	defer store.Close()

	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Minute)

	if v, ok := store.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %t), want (1, true)", v, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) = ok")
	}
	if got := store.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestTTLStoreExpiry(t *testing.T) {
	store := newTTLStore[string, int](time.Minute, nil)
	defer store.Close()

	store.Set("short", 1, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := store.Get("short"); ok {
		t.Error("expired entry still returned by Get")
	}
	if got := store.Len(); got != 0 {
		t.Errorf("Len() counts expired entries, got %d", got)
	}
}

func TestTTLStoreSetReplacesTTL(t *testing.T) {
	store := newTTLStore[string, int](time.Minute, nil)
	defer store.Close()

	store.Set("key", 1, 5*time.Millisecond)
	store.Set("key", 2, time.Minute)
	time.Sleep(20 * time.Millisecond)

	if v, ok := store.Get("key"); !ok || v != 2 {
		t.Errorf("Get(key) = (%d, %t), want (2, true)", v, ok)
	}
}

func TestTTLStoreDelete(t *testing.T) {
	store := newTTLStore[string, int](time.Minute, nil)
	defer store.Close()

	store.Set("a", 1, time.Minute)
	if !store.Delete("a") {
		t.Error("Delete(a) = false for existing key")
	}
	if store.Delete("a") {
		t.Error("Delete(a) = true for removed key")
	}
}

func TestTTLStoreForEach(t *testing.T) {
	store := newTTLStore[string, int](time.Minute, nil)
	defer store.Close()

	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Minute)
	store.Set("gone", 3, -time.Second)

	seen := map[string]int{}
	store.ForEach(func(key string, value int) bool {
		seen[key] = value
		return true
	})

	if len(seen) != 2 {
		t.Errorf("ForEach visited %d entries, want 2: %v", len(seen), seen)
	}
	if _, ok := seen["gone"]; ok {
		t.Error("ForEach visited an expired entry")
	}

	// Early stop.
	visits := 0
	store.ForEach(func(string, int) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("ForEach kept going after false, visits = %d", visits)
	}
}

func TestTTLStoreForEachAllowsMutation(t *testing.T) {
	store := newTTLStore[string, int](time.Minute, nil)
	defer store.Close()

	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Minute)

	// The shutdown path re-TTLs entries from inside ForEach; that must
	// not block on the store's own lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.ForEach(func(key string, value int) bool {
			store.Set(key, value+10, time.Minute)
			store.Delete("b")
			return true
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ForEach deadlocked on store mutation from its callback")
	}

	if v, ok := store.Get("a"); !ok || v != 11 {
		t.Errorf("Get(a) = (%d, %t), want (11, true)", v, ok)
	}
	if _, ok := store.Get("b"); ok {
		t.Error("Delete inside ForEach did not stick")
	}
}

func TestTTLStoreEviction(t *testing.T) {
	var mu sync.Mutex
	evicted := map[string]int{}

	store := newTTLStore[string, int](10*time.Millisecond, func(key string, value int) {
		mu.Lock()
		evicted[key] = value
		mu.Unlock()
	})
	defer store.Close()

	store.Set("doomed", 7, time.Millisecond)

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		v, ok := evicted["doomed"]
		mu.Unlock()
		if ok {
			if v != 7 {
				t.Errorf("evicted value = %d, want 7", v)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("eviction callback never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
