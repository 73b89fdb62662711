package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"telegram-shop-bot/internal/domain"
	"telegram-shop-bot/internal/domain/ports/repository"
)

// fakeRedis implements RedisClient over a plain map; Get on a missing key
// answers redis.Nil like the real client does.
type fakeRedis struct {
	data map[string]string
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return f.err }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value.(string)
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) { return 1, f.err }

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return f.err
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return f.err
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	// Only the compare-and-delete unlock script is used here.
	if len(keys) == 1 && len(args) == 1 && f.data[keys[0]] == args[0] {
		delete(f.data, keys[0])
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *fakeRedis) Close() error { return nil }

func TestLoadDefaultsToStart(t *testing.T) {
	repo := NewStateRepo(newFakeRedis(), 0)
	state, err := repo.Load(context.Background(), 1001)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != repository.StateStart {
		t.Fatalf("state = %s, want %s for an unseen chat", state, repository.StateStart)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := NewStateRepo(newFakeRedis(), 0)
	ctx := context.Background()

	for _, s := range []repository.ConversationState{
		repository.StateMenu, repository.StateDescription, repository.StateCart, repository.StateAwaitEmail,
	} {
		if err := repo.Save(ctx, 7, s); err != nil {
			t.Fatalf("Save(%s): %v", s, err)
		}
		got, err := repo.Load(ctx, 7)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != s {
			t.Fatalf("Load = %s, want %s", got, s)
		}
	}
}

func TestUnknownStoredValueDegradesToStart(t *testing.T) {
	fake := newFakeRedis()
	fake.data["dialog_state:7"] = "SOME_OLD_STATE"
	repo := NewStateRepo(fake, 0)

	state, err := repo.Load(context.Background(), 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != repository.StateStart {
		t.Fatalf("state = %s, want %s", state, repository.StateStart)
	}
}

func TestStoreFailureIsReported(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	repo := NewStateRepo(fake, 0)

	if _, err := repo.Load(context.Background(), 7); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Load err = %v, want ErrStoreUnavailable", err)
	}
	if err := repo.Save(context.Background(), 7, repository.StateMenu); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Save err = %v, want ErrStoreUnavailable", err)
	}
}

func TestTurnLockSerialization(t *testing.T) {
	fake := newFakeRedis()
	locker := NewTurnLocker(fake)
	ctx := context.Background()

	token, err := locker.TryLock(ctx, 7, time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	if _, err := locker.TryLock(ctx, 7, time.Minute); !errors.Is(err, domain.ErrTurnInProgress) {
		t.Fatalf("second TryLock err = %v, want ErrTurnInProgress", err)
	}

	if err := locker.Unlock(ctx, 7, "wrong-token"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, held := fake.data[turnKey(7)]; !held {
		t.Fatal("foreign token must not release the lock")
	}

	if err := locker.Unlock(ctx, 7, token); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := locker.TryLock(ctx, 7, time.Minute); err != nil {
		t.Fatalf("relock after release: %v", err)
	}
}
