//go:build integration

package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/memory"
	leadredis "github.com/phbpx/leadtrack/redis"
)

// countingService records how often CountByStatus reaches the store.
type countingService struct {
	*memory.LeadService
	calls int
}

func (c *countingService) CountByStatus(ctx context.Context) (map[leadtrack.Status]int, error) {
	c.calls++
	return c.LeadService.CountByStatus(ctx)
}

func TestStatsCache(t *testing.T) {
	url := os.Getenv("LEAD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEAD_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	client, err := leadredis.New(ctx, leadredis.Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.FlushDB(ctx).Err())

	store := &countingService{LeadService: memory.NewLeadService()}
	cache := leadredis.NewStatsCache(store, client, time.Minute, zap.NewNop().Sugar())

	_, err = cache.Create(ctx, leadtrack.NewLead{Address: "1 Elm St", City: "Davis", State: "CA", Zip: "95616", Status: "Sale"})
	require.NoError(t, err)

	counts, err := cache.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[leadtrack.StatusSale])

	_, err = cache.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, store.calls, "second read served from cache")

	_, err = cache.Create(ctx, leadtrack.NewLead{Address: "2 Elm St", City: "Davis", State: "CA", Zip: "95616"})
	require.NoError(t, err)

	counts, err = cache.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, store.calls, "write invalidates cache")
	require.Equal(t, 1, counts[leadtrack.StatusLead])
}

// racingService lets a write land after the store was read but before the
// cache is filled.
type racingService struct {
	*memory.LeadService
	between func()
}

func (r *racingService) CountByStatus(ctx context.Context) (map[leadtrack.Status]int, error) {
	counts, err := r.LeadService.CountByStatus(ctx)
	if r.between != nil {
		between := r.between
		r.between = nil
		between()
	}
	return counts, err
}

func TestStatsCacheIgnoresCountsReadBeforeWrite(t *testing.T) {
	url := os.Getenv("LEAD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEAD_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	client, err := leadredis.New(ctx, leadredis.Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.FlushDB(ctx).Err())

	store := &racingService{LeadService: memory.NewLeadService()}
	cache := leadredis.NewStatsCache(store, client, time.Minute, zap.NewNop().Sugar())

	store.between = func() {
		_, err := cache.Create(ctx, leadtrack.NewLead{Address: "1 Elm St", City: "Davis", State: "CA", Zip: "95616", Status: "Sale"})
		require.NoError(t, err)
	}

	counts, err := cache.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, counts[leadtrack.StatusSale], "read raced the write")

	counts, err = cache.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[leadtrack.StatusSale])
}

func TestNewWithoutURL(t *testing.T) {
	client, err := leadredis.New(context.Background(), leadredis.Config{})
	require.NoError(t, err)
	require.Nil(t, client)
}
