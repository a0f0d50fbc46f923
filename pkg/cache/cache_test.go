package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/models"
)

// failingStore always errors, for fail-open verification.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (*Entry, error) {
	return nil, errors.New("backend down")
}
func (failingStore) Set(ctx context.Context, entry *Entry, ttl time.Duration) error {
	return errors.New("backend down")
}
func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("backend down")
}
func (failingStore) InvalidateExpired(ctx context.Context) (int, error) {
	return 0, errors.New("backend down")
}

func newTestCache(t *testing.T, ttl time.Duration) (QueryCache, *MemoryStore) {
	t.Helper()
	local, err := NewMemoryStore(16)
	require.NoError(t, err)
	return New(local, nil, ttl, zap.NewNop()), local
}

func testEntry(queryText, userID string) *Entry {
	payload, _ := json.Marshal(map[string]any{"response": "42"})
	return &Entry{
		UserID:    userID,
		QueryText: queryText,
		Level:     models.LevelDirect,
		Payload:   payload,
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"How many students?", "how many students?"},
		{"  How   many \t students?  ", "how many students?"},
		{"查询学生总数", "查询学生总数"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input))
	}
}

func TestKeyFor_DistinguishesUsers(t *testing.T) {
	k1 := KeyFor("how many students", "user-a")
	k2 := KeyFor("how many students", "user-b")
	k3 := KeyFor("How MANY   students", "user-a")

	assert.NotEqual(t, k1, k2, "different users must not share entries")
	assert.Equal(t, k1, k3, "normalization must not affect the key")
}

func TestCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)

	require.NoError(t, c.Set(ctx, testEntry("how many students", "user-1")))

	got, ok := c.Get(ctx, "How many students", "user-1")
	require.True(t, ok)
	assert.Equal(t, models.LevelDirect, got.Level)
	assert.Equal(t, int64(1), got.HitCount)

	_, ok = c.Get(ctx, "how many students", "user-2")
	assert.False(t, ok, "other users must miss")
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, local := newTestCache(t, 10*time.Millisecond)

	require.NoError(t, c.Set(ctx, testEntry("list activities", "user-1")))
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "list activities", "user-1")
	assert.False(t, ok, "expired entries must miss")

	// The expired read also evicts.
	assert.Equal(t, 0, local.Len())
}

func TestCache_FailOpenOnSharedOutage(t *testing.T) {
	ctx := context.Background()
	local, err := NewMemoryStore(16)
	require.NoError(t, err)
	c := New(local, failingStore{}, time.Minute, zap.NewNop())

	// Set succeeds despite the shared layer being down.
	require.NoError(t, c.Set(ctx, testEntry("how many classes", "user-1")))

	// Get is served from the local layer.
	_, ok := c.Get(ctx, "how many classes", "user-1")
	assert.True(t, ok)

	// A miss with a broken shared layer is a miss, not an error.
	_, ok = c.Get(ctx, "something uncached", "user-1")
	assert.False(t, ok)
}

func TestMemoryStore_InvalidateExpired(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)

	now := time.Now()
	expired := testEntry("old question", "user-1")
	expired.Key = KeyFor(expired.QueryText, expired.UserID)
	expired.ExpiresAt = now.Add(-time.Minute)
	live := testEntry("new question", "user-1")
	live.Key = KeyFor(live.QueryText, live.UserID)
	live.ExpiresAt = now.Add(time.Minute)

	require.NoError(t, store.Set(ctx, expired, 0))
	require.NoError(t, store.Set(ctx, live, 0))

	deleted, err := store.InvalidateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, store.Len())

	// Idempotent: a second sweep deletes nothing.
	deleted, err = store.InvalidateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestMemoryStore_InvalidateExpired_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(128)
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 50; i++ {
		e := testEntry(string(rune('a'+i%26))+"-question", "user")
		e.Key = KeyFor(e.QueryText, e.UserID) + string(rune('0'+i/26))
		e.ExpiresAt = now.Add(-time.Second)
		require.NoError(t, store.Set(ctx, e, 0))
	}

	var wg sync.WaitGroup
	total := make([]int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := store.InvalidateExpired(ctx)
			assert.NoError(t, err)
			total[i] = n
		}(i)
	}
	wg.Wait()

	sum := 0
	for _, n := range total {
		sum += n
	}
	assert.Equal(t, 50, sum, "each expired entry is deleted exactly once")
	assert.Equal(t, 0, store.Len())
}
