package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "/recipes"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "/recipes", []byte(`[{"title":"Soup"}]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := s.Get(ctx, "/recipes")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if string(val) != `[{"title":"Soup"}]` {
		t.Fatalf("Get returned %s", val)
	}

	// overwrite
	if err := s.Set(ctx, "/recipes", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if val, _, _ := s.Get(ctx, "/recipes"); string(val) != `[]` {
		t.Fatalf("Get after overwrite returned %s", val)
	}

	if err := s.Delete(ctx, "/recipes"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "/recipes"); ok {
		t.Fatal("key still present after Delete")
	}
	if err := s.Delete(ctx, "/not-there"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}

	keys := []string{
		"/recipes/search",
		"/recipes/search?query=soup",
		"/recipes/search?query=100%_sure",
		"/recipes/searchable",
		"/recipes/fixed?limit=3",
	}
	for _, k := range keys {
		if err := s.Set(ctx, k, []byte(`{}`), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	if err := s.DeletePrefix(ctx, "/recipes/search?"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	for k, want := range map[string]bool{
		"/recipes/search":                 true,
		"/recipes/search?query=soup":      false,
		"/recipes/search?query=100%_sure": false,
		"/recipes/searchable":             true,
		"/recipes/fixed?limit=3":          true,
	} {
		if _, ok, _ := s.Get(ctx, k); ok != want {
			t.Fatalf("after DeletePrefix, %s present=%v, want %v", k, ok, want)
		}
	}

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMemStoreContract(t *testing.T) {
	runStoreContract(t, NewMemStore())
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemStoreExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewMemStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	s.Set(ctx, "/recipes", []byte(`[]`), time.Second)
	if _, ok, _ := s.Get(ctx, "/recipes"); !ok {
		t.Fatal("entry missing before ttl")
	}
	now = now.Add(time.Second)
	if _, ok, _ := s.Get(ctx, "/recipes"); ok {
		t.Fatal("entry present after ttl")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry not dropped, len %d", s.Len())
	}
}

func TestSQLiteStoreExpiry(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Set(ctx, "/recipes/1", []byte(`{}`), time.Second)
	if _, ok, _ := s.Get(ctx, "/recipes/1"); !ok {
		t.Fatal("entry missing before ttl")
	}
	now = now.Add(time.Second)
	if _, ok, _ := s.Get(ctx, "/recipes/1"); ok {
		t.Fatal("entry present after ttl")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`a%b_c\d`); got != `a\%b\_c\\d` {
		t.Fatalf("escapeLike returned %s", got)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("/recipes/search?q=[a]*"); got != `/recipes/search\?q=\[a\]\*` {
		t.Fatalf("escapeGlob returned %s", got)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	s, err := NewRedisStore(RedisConfig{
		URL:         "redis://127.0.0.1:1/0",
		DialTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, _, err := s.Get(ctx, "/recipes"); err == nil {
		t.Fatal("expected error from unreachable redis")
	}
	if err := s.Delete(ctx, "/recipes"); err == nil {
		t.Fatal("expected error from unreachable redis")
	}
}

func TestRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore(RedisConfig{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

type flakyStore struct {
	MemStore
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, false, errors.New("connection refused")
	}
	return f.MemStore.Get(ctx, key)
}

func TestBreakerStoreOpensAfterFailures(t *testing.T) {
	inner := &flakyStore{MemStore: *NewMemStore(), fail: true}
	cfg := DefaultBreakerConfig("test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour
	b := NewBreakerStore(inner, cfg, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := b.Get(ctx, "/recipes"); err == nil {
			t.Fatal("expected error")
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state is %s", b.State())
	}
	if _, _, err := b.Get(ctx, "/recipes"); err != gobreaker.ErrOpenState {
		t.Fatalf("expected open state error, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("inner store called %d times", inner.calls)
	}
}

func TestBreakerStoreMissIsNotFailure(t *testing.T) {
	inner := &flakyStore{MemStore: *NewMemStore()}
	cfg := DefaultBreakerConfig("test")
	cfg.ConsecutiveFailures = 1
	b := NewBreakerStore(inner, cfg, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, ok, err := b.Get(ctx, "/recipes"); ok || err != nil {
			t.Fatalf("Get: ok=%v err=%v", ok, err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("breaker state is %s", b.State())
	}
	b.Set(ctx, "/recipes", []byte(`[]`), time.Minute)
	if val, ok, err := b.Get(ctx, "/recipes"); !ok || err != nil || string(val) != `[]` {
		t.Fatalf("Get through breaker: %s ok=%v err=%v", val, ok, err)
	}
}

func TestBreakerStoreOpenStillDeletes(t *testing.T) {
	inner := &flakyStore{MemStore: *NewMemStore(), fail: true}
	cfg := DefaultBreakerConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	b := NewBreakerStore(inner, cfg, zerolog.Nop())
	ctx := context.Background()
	inner.MemStore.Set(ctx, "/recipes/r1", []byte(`{}`), time.Hour)
	inner.MemStore.Set(ctx, "/recipes/fixed?limit=6", []byte(`[]`), time.Hour)

	for i := 0; i < 2; i++ {
		b.Get(ctx, "/recipes/r1")
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state is %s", b.State())
	}

	if err := b.Delete(ctx, "/recipes/r1"); err != nil {
		t.Fatalf("Delete with open breaker: %v", err)
	}
	if err := b.DeletePrefix(ctx, "/recipes/fixed?"); err != nil {
		t.Fatalf("DeletePrefix with open breaker: %v", err)
	}
	if inner.Len() != 0 {
		t.Fatalf("store holds %d entries", inner.Len())
	}
}

// canceledStore reports the caller's context error on reads.
type canceledStore struct {
	MemStore
}

func (c *canceledStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return c.MemStore.Get(ctx, key)
}

func TestBreakerStoreIgnoresCallerCancellation(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.ConsecutiveFailures = 1
	b := NewBreakerStore(&canceledStore{MemStore: *NewMemStore()}, cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		if _, _, err := b.Get(ctx, "/recipes"); !errors.Is(err, context.Canceled) {
			t.Fatalf("Get returned %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("breaker state is %s", b.State())
	}
}
