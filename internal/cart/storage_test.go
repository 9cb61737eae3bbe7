package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string][]byte
	ttls   map[string]time.Duration
}

func (f *fakeRedis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = value.([]byte)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisStorageBacksStore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
	storage := NewRedisStorage(fake, time.Hour)
	s := NewStore(storage, "osushi:cart:abc")

	_, err := s.AddItem(ctx, sashimi(), "", 2, "")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, fake.ttls["osushi:cart:abc"])

	n, err := NewStore(storage, "osushi:cart:abc").ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, storage.Delete(ctx, "osushi:cart:abc"))
	_, found, err := storage.Get(ctx, "osushi:cart:abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStorageCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	data := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", data))
	data[0] = 'z'

	got, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", string(got))
}
