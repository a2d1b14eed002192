package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behavior every Store implementation shares.
func runContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	a, b := []byte("model-a"), []byte("model-b")

	idA, err := s.Put(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, ID(a), idA)

	again, err := s.Put(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, idA, again, "same bytes, same id")

	idB, err := s.Put(ctx, b)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	got, err := s.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got[0] = 'X'
	got, err = s.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, a, got, "returned bytes do not alias the store")

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{idA, idB}, ids)
	assert.IsNonDecreasing(t, ids)

	require.NoError(t, s.Delete(ctx, idA))
	_, err = s.Get(ctx, idA)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, idA))

	_, err = s.Get(ctx, ID([]byte("never stored")))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	runContract(t, s)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisStore(t *testing.T) {
	_, client := newMiniredis(t)
	s := NewRedisFromClient(client)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	runContract(t, s)
}

func TestRedisPrefixAndTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client, WithPrefix("test:"), WithTTL(time.Minute))
	ctx := context.Background()

	id, err := s.Put(ctx, []byte("model"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:"+id))
	assert.Equal(t, time.Minute, mr.TTL("test:"+id))

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisDetectsTampering(t *testing.T) {
	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client)
	ctx := context.Background()

	id, err := s.Put(ctx, []byte("model"))
	require.NoError(t, err)
	require.NoError(t, mr.Set(DefaultPrefix+id, "tampered"))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s := NewRedisFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr(), MaxRetries: -1}))
	defer s.Close()
	mr.Close()

	_, err = s.Put(context.Background(), []byte("model"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(ID([]byte("x"))))
	assert.ErrorIs(t, ValidateID("ABC"), ErrInvalidID)
	assert.ErrorIs(t, ValidateID(string(make([]byte, 64))), ErrInvalidID)
}
