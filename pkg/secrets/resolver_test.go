package secrets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingStore records calls and returns canned values.
type countingStore struct {
	mu      sync.Mutex
	values  map[string]string
	getErr  error
	putErr  error
	delay   time.Duration
	gets    atomic.Int32
	puts    atomic.Int32
	written map[string]string
}

func newCountingStore(values map[string]string) *countingStore {
	return &countingStore{values: values, written: map[string]string{}}
}

func (s *countingStore) Get(ctx context.Context, name string) (string, error) {
	s.gets.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.getErr != nil {
		return "", s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *countingStore) Put(_ context.Context, name, value string) error {
	s.puts.Add(1)
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[name] = value
	return nil
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLookupEnvironmentWins(t *testing.T) {
	store := newCountingStore(map[string]string{"LINEAR_API_KEY": "from-store"})
	r := NewResolver(store, WithGetenv(envMap(map[string]string{"LINEAR_API_KEY": "from-env"})))

	v, ok := r.Lookup(context.Background(), "LINEAR_API_KEY")
	if !ok || v != "from-env" {
		t.Fatalf("Lookup = %q, %v; want from-env", v, ok)
	}
	if n := store.gets.Load(); n != 0 {
		t.Errorf("store consulted %d times, want 0", n)
	}
}

func TestLookupCachesStoreValue(t *testing.T) {
	store := newCountingStore(map[string]string{"FRONT_API_TOKEN": "tok"})
	r := NewResolver(store, WithGetenv(envMap(nil)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if v := r.Get(ctx, "FRONT_API_TOKEN"); v != "tok" {
			t.Fatalf("Get #%d = %q", i, v)
		}
	}
	if n := store.gets.Load(); n != 1 {
		t.Errorf("store reads = %d, want 1", n)
	}
}

func TestLookupFailuresAreHiddenAndNotCached(t *testing.T) {
	store := newCountingStore(nil)
	store.getErr = errors.New("permission denied")
	r := NewResolver(store, WithGetenv(envMap(nil)))
	ctx := context.Background()

	v, ok := r.Lookup(ctx, "XERO_CLIENT_ID")
	if ok || v != "" {
		t.Fatalf("Lookup = %q, %v; want empty, false", v, ok)
	}

	// A later call retries the store.
	store.getErr = nil
	store.values = map[string]string{"XERO_CLIENT_ID": "cid"}
	if v := r.Get(ctx, "XERO_CLIENT_ID"); v != "cid" {
		t.Errorf("Get after recovery = %q, want cid", v)
	}
	if n := store.gets.Load(); n != 2 {
		t.Errorf("store reads = %d, want 2", n)
	}
}

func TestLookupEmptyValueNotCached(t *testing.T) {
	store := newCountingStore(map[string]string{"EMPTY": ""})
	r := NewResolver(store, WithGetenv(envMap(nil)))

	for i := 0; i < 2; i++ {
		if _, ok := r.Lookup(context.Background(), "EMPTY"); ok {
			t.Fatal("empty value should report not found")
		}
	}
	if n := store.gets.Load(); n != 2 {
		t.Errorf("store reads = %d, want 2", n)
	}
}

func TestLookupTimeout(t *testing.T) {
	store := newCountingStore(map[string]string{"SLOW": "v"})
	store.delay = time.Second
	r := NewResolver(store, WithGetenv(envMap(nil)), WithLookupTimeout(10*time.Millisecond))

	start := time.Now()
	if _, ok := r.Lookup(context.Background(), "SLOW"); ok {
		t.Fatal("slow lookup should fail")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("lookup took %v, timeout not applied", elapsed)
	}
}

func TestLookupNoStore(t *testing.T) {
	r := NewResolver(nil, WithGetenv(envMap(map[string]string{"A": "1"})))
	if v := r.Get(context.Background(), "A"); v != "1" {
		t.Errorf("Get(A) = %q", v)
	}
	if _, ok := r.Lookup(context.Background(), "B"); ok {
		t.Error("B should be absent")
	}
	if r.HasStore() {
		t.Error("HasStore should be false")
	}
}

func TestLookupAnyFallback(t *testing.T) {
	r := NewResolver(nil, WithGetenv(envMap(map[string]string{"SHAREPOINT_CLIENT_ID": "sp"})))

	v, ok := r.LookupAny(context.Background(), "M365_CLIENT_ID", "SHAREPOINT_CLIENT_ID")
	if !ok || v != "sp" {
		t.Errorf("LookupAny = %q, %v; want sp", v, ok)
	}
}

func TestLookupConcurrentSharesFetch(t *testing.T) {
	store := newCountingStore(map[string]string{"PAX8_CLIENT_ID": "p"})
	store.delay = 50 * time.Millisecond
	r := NewResolver(store, WithGetenv(envMap(nil)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v := r.Get(context.Background(), "PAX8_CLIENT_ID"); v != "p" {
				t.Errorf("Get = %q", v)
			}
		}()
	}
	wg.Wait()

	if n := store.gets.Load(); n != 1 {
		t.Errorf("store reads = %d, want 1", n)
	}
}

func TestLookupSharedFetchSurvivesCallerCancel(t *testing.T) {
	store := newCountingStore(map[string]string{"XERO_CLIENT_ID": "x"})
	store.delay = 100 * time.Millisecond
	r := NewResolver(store, WithGetenv(envMap(nil)))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() { first <- r.Get(ctx, "XERO_CLIENT_ID") }()

	// Let the first caller start the fetch, then join it and cancel the first.
	time.Sleep(20 * time.Millisecond)
	second := make(chan string, 1)
	go func() { second <- r.Get(context.Background(), "XERO_CLIENT_ID") }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if v := <-second; v != "x" {
		t.Errorf("second caller Get = %q, want x", v)
	}
	<-first
	if n := store.gets.Load(); n != 1 {
		t.Errorf("store reads = %d, want 1", n)
	}
}

func TestPersist(t *testing.T) {
	store := newCountingStore(nil)
	r := NewResolver(store, WithGetenv(envMap(nil)))
	ctx := context.Background()

	if !r.Persist(ctx, "M365_REFRESH_TOKEN", "rt-new") {
		t.Fatal("Persist should report success")
	}
	if store.written["M365_REFRESH_TOKEN"] != "rt-new" {
		t.Errorf("store not written: %v", store.written)
	}
	if v := r.Get(ctx, "M365_REFRESH_TOKEN"); v != "rt-new" {
		t.Errorf("Get after Persist = %q", v)
	}
	if n := store.gets.Load(); n != 0 {
		t.Errorf("persisted value should be served from cache, store reads = %d", n)
	}
}

func TestPersistFailureKeepsValueInMemory(t *testing.T) {
	store := newCountingStore(nil)
	store.putErr = errors.New("unavailable")
	r := NewResolver(store, WithGetenv(envMap(nil)))
	ctx := context.Background()

	if r.Persist(ctx, "XERO_REFRESH_TOKEN", "rt") {
		t.Fatal("Persist should report failure")
	}
	if v := r.Get(ctx, "XERO_REFRESH_TOKEN"); v != "rt" {
		t.Errorf("Get = %q, want in-memory value", v)
	}

	if NewResolver(nil).Persist(ctx, "X", "y") {
		t.Error("Persist without store should report false")
	}
}
