package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/models"
)

func TestDecisionCache_RealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	cache := NewDecisionCache(client)
	key := checkin.CacheKey(7, "ABC123")
	require.NoError(t, cache.Put(ctx, key, models.Decision{Outcome: models.OutcomeValid}, time.Second))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.OutcomeValid, got.Outcome)

	assert.Eventually(t, func() bool {
		_, ok, err := cache.Get(ctx, key)
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond, "entry expires with its ttl")
}
