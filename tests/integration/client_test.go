package integration

import (
	"context"
	"testing"
	"time"

	"github.com/hojin-tools/gbiz-collector/internal/testutil"
	"github.com/hojin-tools/gbiz-collector/pkg/cache"
	"github.com/hojin-tools/gbiz-collector/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// TestDetailCacheFlow exercises the full detail flow: registry fetch,
// cache fill, then a second lookup served from Redis without a request.
func TestDetailCacheFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetDetail("7000012050002", testutil.Item{
		CorporateNumber: "7000012050002",
		Name:            "Cached Trading KK",
		PrefectureCode:  "13",
	})

	api, err := client.New(client.Config{
		Token:   "integration-token",
		BaseURL: mock.URL(),
		Cache:   cache.NewManager(redisClient, time.Hour),
	})
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}
	defer api.Close()

	ctx := context.Background()
	detailPath := testutil.SearchPath + "/7000012050002"

	first, err := api.Detail(ctx, "7000012050002")
	if err != nil {
		t.Fatalf("first Detail() failed: %v", err)
	}
	if first == nil || first.Name != "Cached Trading KK" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if got := mock.RequestsTo(detailPath); got != 1 {
		t.Fatalf("expected 1 registry request, got %d", got)
	}

	second, err := api.Detail(ctx, "7000012050002")
	if err != nil {
		t.Fatalf("second Detail() failed: %v", err)
	}
	if second == nil || second.Name != first.Name {
		t.Fatalf("cache returned a different record: %+v", second)
	}
	if got := mock.RequestsTo(detailPath); got != 1 {
		t.Errorf("second lookup hit the registry, %d requests", got)
	}

	// The cached envelope is keyed by corporate number.
	key := cache.Key{CorporateNumber: "7000012050002"}
	if exists, _ := redisClient.Exists(ctx, key.String()).Result(); exists != 1 {
		t.Error("expected cache entry in Redis")
	}
}

// TestNotFoundIsNotCached verifies that unknown numbers keep hitting the
// registry instead of pinning an empty record in the cache.
func TestNotFoundIsNotCached(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath+"/9999999999999", testutil.NewNotFoundResponse())

	api, err := client.New(client.Config{
		Token:   "integration-token",
		BaseURL: mock.URL(),
		Cache:   cache.NewManager(redisClient, time.Hour),
	})
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}
	defer api.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		corp, err := api.Detail(ctx, "9999999999999")
		if err != nil || corp != nil {
			t.Fatalf("lookup %d: got (%v, %v), want (nil, nil)", i, corp, err)
		}
	}

	if got := mock.RequestsTo(testutil.SearchPath + "/9999999999999"); got != 2 {
		t.Errorf("expected 2 registry requests, got %d", got)
	}

	key := cache.Key{CorporateNumber: "9999999999999"}
	if exists, _ := redisClient.Exists(ctx, key.String()).Result(); exists != 0 {
		t.Error("not-found result must not be cached")
	}
}
