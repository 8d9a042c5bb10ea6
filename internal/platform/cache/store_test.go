package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore[[]string](time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) ([]string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []string{"sub-1", "sub-2"}, nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "submissions", loader)
			if err != nil {
				errCh <- err
				return
			}
			if len(v) != 2 {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_GetOrLoad_DoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	store := NewStore[string](time.Minute)
	var calls atomic.Int32
	errBackend := errors.New("backend down")

	failing := func(context.Context) (string, error) {
		calls.Add(1)
		return "", errBackend
	}
	if _, err := store.GetOrLoad(context.Background(), "k", failing); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}

	v, err := store.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("second load = %q, %v", v, err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("loader called %d times, want 2", got)
	}
}

func TestStore_ExpiresAndDeletes(t *testing.T) {
	t.Parallel()

	store := NewStore[int](time.Second)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	store.Set(ctx, "judging:submissions", 1)
	store.Set(ctx, "judging:questions", 2)
	store.Set(ctx, "other", 3)

	if v, ok := store.Get(ctx, "judging:submissions"); !ok || v != 1 {
		t.Fatalf("expected cached value, got %d %v", v, ok)
	}

	store.DeletePrefix(ctx, "judging:")
	if _, ok := store.Get(ctx, "judging:questions"); ok {
		t.Fatalf("expected prefix delete to remove entry")
	}

	now = now.Add(2 * time.Second)
	if _, ok := store.Get(ctx, "other"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestStore_GetOrLoad_DeleteDuringLoadIsNotCached(t *testing.T) {
	t.Parallel()

	store := NewStore[string](time.Minute)
	ctx := context.Background()

	v, err := store.GetOrLoad(ctx, "submission:list", func(ctx context.Context) (string, error) {
		store.Delete(ctx, "submission:list")
		return "previous judge", nil
	})
	if err != nil || v != "previous judge" {
		t.Fatalf("load = %q, %v", v, err)
	}
	if _, ok := store.Get(ctx, "submission:list"); ok {
		t.Fatalf("value loaded across a delete must not be cached")
	}

	if _, err := store.GetOrLoad(ctx, "submission:list", func(context.Context) (string, error) { return "current judge", nil }); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v, ok := store.Get(ctx, "submission:list"); !ok || v != "current judge" {
		t.Fatalf("expected fresh value cached, got %q %v", v, ok)
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")
