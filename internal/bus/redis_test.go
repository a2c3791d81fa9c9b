package bus

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedisConformance(t *testing.T) {
	addr := os.Getenv("BRISCOLA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set BRISCOLA_TEST_REDIS_ADDR to run against a live Redis")
	}

	ctx := context.Background()
	b, err := NewRedis(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	runBusConformance(t, ctx, b)
}
