package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/testutil"
)

type fakeFetcher struct {
	calls atomic.Int32
	quote *models.GoldQuote
	err   error
}

func (f *fakeFetcher) FetchAndPersist(ctx context.Context) (*models.GoldQuote, error) {
	f.calls.Add(1)
	return f.quote, f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	keys     []string
	released int
}

func (l *fakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, ErrNotObtained
	}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func TestTickWithoutLocker(t *testing.T) {
	f := &fakeFetcher{quote: &models.GoldQuote{ID: 1}}
	p := New(f, nil, time.Minute, nil)

	if !p.Tick(context.Background()) {
		t.Fatal("Expected tick to run")
	}
	if f.calls.Load() != 1 {
		t.Errorf("Expected one fetch, got %d", f.calls.Load())
	}
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	f := &fakeFetcher{}
	l := &fakeLocker{held: true}
	p := New(f, l, time.Minute, nil)

	if p.Tick(context.Background()) {
		t.Error("Expected tick to be skipped")
	}
	if f.calls.Load() != 0 {
		t.Errorf("Expected no fetch, got %d", f.calls.Load())
	}
	if len(l.keys) != 1 || l.keys[0] != "gold:fetch" {
		t.Errorf("Expected gold:fetch lock attempt, got %v", l.keys)
	}
}

func TestTickSkipsOnLockError(t *testing.T) {
	f := &fakeFetcher{}
	p := New(f, &fakeLocker{err: errors.New("redis down")}, time.Minute, nil)

	if p.Tick(context.Background()) {
		t.Error("Expected tick to be skipped")
	}
	if f.calls.Load() != 0 {
		t.Errorf("Expected no fetch, got %d", f.calls.Load())
	}
}

func TestTickReleasesLock(t *testing.T) {
	f := &fakeFetcher{err: errors.New("db down")}
	l := &fakeLocker{}
	p := New(f, l, time.Minute, nil)

	if !p.Tick(context.Background()) {
		t.Fatal("Expected tick to run")
	}
	if l.released != 1 {
		t.Errorf("Expected lock released once, got %d", l.released)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &fakeFetcher{}
	p := New(f, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if n := f.calls.Load(); n < 2 {
		t.Errorf("Expected several ticks, got %d", n)
	}
}

func TestRedisLockerSingleHolder(t *testing.T) {
	addr, cleanup := testutil.SetupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	a := NewRedisLocker(client)
	b := NewRedisLocker(client)

	release, err := a.Obtain(ctx, lockKey, time.Minute)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}

	if _, err := b.Obtain(ctx, lockKey, time.Minute); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("Expected ErrNotObtained, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	release, err = b.Obtain(ctx, lockKey, time.Minute)
	if err != nil {
		t.Fatalf("Expected lock after release, got %v", err)
	}
	release(ctx)
}

func TestPollersShareOneFetchPerTick(t *testing.T) {
	addr, cleanup := testutil.SetupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	f := &fakeFetcher{}
	hold := &blockingFetcher{inner: f, started: make(chan struct{}), release: make(chan struct{})}
	first := New(hold, NewRedisLocker(client), time.Minute, nil)
	second := New(f, NewRedisLocker(client), time.Minute, nil)

	done := make(chan bool)
	go func() { done <- first.Tick(ctx) }()
	<-hold.started

	if second.Tick(ctx) {
		t.Error("Expected second replica to skip while the first holds the lock")
	}
	close(hold.release)
	if !<-done {
		t.Error("Expected first replica to fetch")
	}
	if f.calls.Load() != 1 {
		t.Errorf("Expected exactly one fetch, got %d", f.calls.Load())
	}
}

type blockingFetcher struct {
	inner   Fetcher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFetcher) FetchAndPersist(ctx context.Context) (*models.GoldQuote, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.inner.FetchAndPersist(ctx)
}
