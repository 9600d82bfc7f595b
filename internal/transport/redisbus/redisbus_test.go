package redisbus

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisPublishSubscribe(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Dial(ctx, addr, os.Getenv("REDIS_PASSWORD"), db)
	require.NoError(t, err)
	defer tr.Close()

	name := "/game/T" + strconv.FormatInt(time.Now().UnixNano()%1_000_000, 10)
	ch, err := tr.Connect(ctx, name)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	sub, err := ch.Subscribe(ctx, func(p json.RawMessage) {
		mu.Lock()
		got = append(got, string(p))
		mu.Unlock()
	}, nil)
	require.NoError(t, err)

	require.NoError(t, ch.Publish(ctx, map[string]string{"message": "hi", "player": "ann"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.JSONEq(t, `{"message":"hi","player":"ann"}`, got[0])
	mu.Unlock()

	sub.Cancel()
	require.NoError(t, ch.Publish(ctx, map[string]string{"message": "late", "player": "ann"}))
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}
