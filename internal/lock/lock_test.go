package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return []byte(v), ok, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLockerExclusive(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l, err := NewRedisLocker(fake, 100*time.Millisecond)
	require.NoError(t, err)
	l.poll = 5 * time.Millisecond

	release, err := l.Acquire(ctx, "lock:checkout:u1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "lock:checkout:u1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Acquire(ctx, "lock:checkout:u2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "lock:checkout:u1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLockerReleaseKeepsForeignOwner(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l, err := NewRedisLocker(fake, time.Second)
	require.NoError(t, err)

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	fake.values["k"] = "someone-else"
	require.NoError(t, release(ctx))
	assert.Equal(t, "someone-else", fake.values["k"])
}

func TestRedisLockerPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l, err := NewRedisLocker(fake, time.Second)
	require.NoError(t, err)

	release, err := l.WithPrefix("osushi:lock").Acquire(ctx, "checkout:user:1")
	require.NoError(t, err)
	_, held := fake.values["osushi:lock:checkout:user:1"]
	assert.True(t, held)

	require.NoError(t, release(ctx))
	assert.Empty(t, fake.values)
}

func TestLocalLockerSerializes(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker(time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "user-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLockerTimesOut(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker(10 * time.Millisecond)

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	defer release(ctx)

	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrNotAcquired)
}
