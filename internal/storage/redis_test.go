package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client), mr
}

func TestRedis(t *testing.T) {
	r, _ := setupTestRedis(t)
	runContract(t, r)
}

func TestRedis_StoresWithoutExpiry(t *testing.T) {
	r, mr := setupTestRedis(t)

	require.NoError(t, r.Set(context.Background(), "ecommerce-cart", []byte("[]")))

	stored, err := mr.Get("shop:ecommerce-cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)
	assert.Zero(t, mr.TTL("shop:ecommerce-cart"))
}

func TestRedis_ServerDown(t *testing.T) {
	r, mr := setupTestRedis(t)
	mr.Close()

	_, err := r.Get(context.Background(), "ecommerce-cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestRedisKey_Format(t *testing.T) {
	assert.Equal(t, "shop:ecommerce-cart", redisKey("ecommerce-cart"))
}
