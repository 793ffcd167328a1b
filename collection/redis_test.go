package collection

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requer um Redis acessível em REDIS_ADDR (ex: localhost:6379).
func newRedisCollection(t *testing.T) *Collection {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR não definido")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	prefix := fmt.Sprintf("decoy-test:%d", time.Now().UnixNano())
	t.Cleanup(func() {
		client.Del(context.Background(), prefix+":records", prefix+":order")
	})

	coll, err := NewRedisCollection(RedisConfig{Client: client, Prefix: prefix, Records: animalSpecies()})
	require.NoError(t, err)
	return coll
}

func TestNewRedisBackend_Validation(t *testing.T) {
	_, err := NewRedisBackend(RedisConfig{Prefix: "x"})
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	_, err = NewRedisBackend(RedisConfig{Client: client})
	assert.Error(t, err)
}

func TestRedisCollection_Lifecycle(t *testing.T) {
	ctx := context.Background()
	coll := newRedisCollection(t)

	n, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rec, ok, err := coll.FindOne(ctx, ByIdentity("3"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Eagle", rec["name"])

	inserted, _, err := coll.Insert(ctx, honeyBadger())
	require.NoError(t, err)
	assert.Equal(t, 6, inserted["id"])

	updated, ok, err := coll.UpdateOne(ctx, ByIdentity(3), Record{"name": "Beagle"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Beagle", updated["name"])
	assert.Equal(t, "Aves", updated["class"])

	_, ok, err = coll.DeleteOne(ctx, ByIdentity(2))
	require.NoError(t, err)
	require.True(t, ok)

	all, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	names := []any{}
	for _, r := range all {
		names = append(names, r["name"])
	}
	assert.Equal(t, []any{"Goldfish", "Beagle", "Frog", "Cow", "Honey Badger"}, names)

	require.NoError(t, coll.Reset(ctx))
	n, _ = coll.Count(ctx)
	assert.Equal(t, 5, n)

	removed, err := coll.Clear(ctx)
	require.NoError(t, err)
	assert.Len(t, removed, 5)

	inserted, _, _ = coll.Insert(ctx, honeyBadger())
	assert.Equal(t, 6, inserted["id"])
}
