package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreSuite runs the same contract checks against every backend.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) (Store, func(time.Duration))
	store    Store
	advance  func(time.Duration)
}

func (s *StoreSuite) SetupTest() {
	s.store, s.advance = s.newStore(s.T())
}

func (s *StoreSuite) TestMissThenHit() {
	ctx := context.Background()

	_, ok, err := s.store.Get(ctx, "exists:image:abc")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.Put(ctx, "exists:image:abc", "1", time.Hour))
	v, ok, err := s.store.Get(ctx, "exists:image:abc")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("1", v)
}

func (s *StoreSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "k", "v", time.Hour))
	s.Require().NoError(s.store.Delete(ctx, "k"))

	_, ok, err := s.store.Get(ctx, "k")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "k", "v", time.Minute))

	s.advance(2 * time.Minute)

	_, ok, err := s.store.Get(ctx, "k")
	s.Require().NoError(err)
	s.False(ok)
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) (Store, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedis(client, nil), mr.FastForward
	}})
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) (Store, func(time.Duration)) {
		m := NewMemory(16, time.Hour)
		now := time.Now()
		m.now = func() time.Time { return now }
		return m, func(d time.Duration) { now = now.Add(d) }
	}})
}

func TestRemember_ComputesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(16, time.Hour)
	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "1", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, store, "exists:document:abc", time.Hour, compute)
		require.NoError(t, err)
		assert.Equal(t, "1", v)
	}
	assert.Equal(t, 1, calls)
}

func TestRemember_ComputeErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(16, time.Hour)
	boom := errors.New("head object failed")

	_, err := Remember(ctx, store, "k", time.Hour, func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	_, ok, _ := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRemember_DegradesWhenCacheIsDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedis(client, nil)
	mr.Close()

	v, err := Remember(ctx, store, "k", time.Hour, func(context.Context) (string, error) { return "0", nil })
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}
