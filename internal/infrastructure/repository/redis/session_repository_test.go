package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = value.(string)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeRedis()
	repo := NewSessionRepository(client, "portal:")

	if err := repo.Save(ctx, session.TokenPair{Access: "A1", Refresh: "R1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if client.values["portal:access"] != "A1" || client.values["portal:refresh"] != "R1" {
		t.Fatalf("unexpected keys: %+v", client.values)
	}

	pair, ok, err := repo.Load(ctx)
	if err != nil || !ok || pair.Access != "A1" {
		t.Fatalf("unexpected load: %+v ok=%v err=%v", pair, ok, err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := repo.Load(ctx); ok {
		t.Fatalf("expected empty session after clear")
	}
}

func TestSessionRepository_PartialPairIsAbsent(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.values["judging-portal:session:refresh"] = "R1"

	_, ok, err := NewSessionRepository(client, "").Load(context.Background())
	if err != nil || ok {
		t.Fatalf("expected absent pair, got ok=%v err=%v", ok, err)
	}
}

func TestSessionRepository_LoadPropagatesErrors(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.getErr = errors.New("connection refused")

	if _, _, err := NewSessionRepository(client, "p").Load(context.Background()); !errors.Is(err, client.getErr) {
		t.Fatalf("expected redis error, got %v", err)
	}
}
