package kv

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/cartstore/pkg/db/models"
	"github.com/angelmondragon/cartstore/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "cs:cart:a")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "cs:cart:a", `[{"id":"1"}]`))
	got, err := store.Get(ctx, "cs:cart:a")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, got)

	require.NoError(t, store.Set(ctx, "cs:cart:a", `[]`))
	got, err = store.Get(ctx, "cs:cart:a")
	require.NoError(t, err)
	assert.Equal(t, `[]`, got, "last write wins")

	require.NoError(t, store.Delete(ctx, "cs:cart:a"))
	_, err = store.Get(ctx, "cs:cart:a")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "cs:cart:missing"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLStore(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:kv_sql_test?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.CartSnapshot{}))

	store := NewSQL(conn)
	exerciseStore(t, store)
	require.NoError(t, store.Ping(context.Background()))
}

func TestRedisStore(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}}
	store := NewRedis(fake, time.Hour)
	exerciseStore(t, store)
	assert.Equal(t, time.Hour, fake.lastTTL)
}

func TestRedisStorePropagatesErrors(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, err: errors.New("connection refused")}
	store := NewRedis(fake, 0)

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, store.Set(context.Background(), "k", "v"))
}

type fakeRedis struct {
	data    map[string]string
	lastTTL time.Duration
	err     error
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = fmt.Sprint(value)
	f.lastTTL = ttl
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) error {
	return f.err
}
