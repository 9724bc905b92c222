package resultstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratecast/ratecast/internal/compression"
	"github.com/ratecast/ratecast/internal/config"
)

var testCreated = time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC)

func sampleRecord(id string, created time.Time) *Record {
	return &Record{
		ID:        id,
		Status:    StatusSucceeded,
		Strategy:  "recursive",
		Horizon:   3,
		Step:      2,
		Model:     "gbm",
		CreatedAt: created,
		Points: []Point{
			{Time: created.AddDate(0, 0, 1), Predicted: 71.2, Actual: 71.25},
			{Time: created.AddDate(0, 0, 2), Predicted: 71.3, Actual: 71.1},
			{Time: created.AddDate(0, 0, 3), Predicted: 71.4, Actual: 71.5},
		},
		MAE:   0.1167,
		Steps: []Step{{Index: 0, Size: 2, MAE: 0.125, TrainRows: 1197}, {Index: 1, Size: 1, Final: true, MAE: 0.1, TrainRows: 1199}},
		Selection: &Selection{
			Requested: 40,
			Selected:  []string{"shift_2", "roll_mean_2"},
		},
	}
}

func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Put(ctx, &Record{}))

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("run-%d", i)
		require.NoError(t, s.Put(ctx, sampleRecord(id, testCreated.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	want := sampleRecord("run-1", testCreated.Add(time.Minute))
	assert.Equal(t, want.Points, got.Points)
	assert.Equal(t, want.Steps, got.Steps)
	assert.Equal(t, want.Selection, got.Selection)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	list, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].ID)
	assert.Equal(t, "run-1", list[1].ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Delete(ctx, "run-0"))
	assert.ErrorIs(t, s.Delete(ctx, "run-0"), ErrNotFound)
	_, err = s.Get(ctx, "run-0")
	assert.ErrorIs(t, err, ErrNotFound)

	updated := sampleRecord("run-2", testCreated.Add(2*time.Minute))
	updated.Status = StatusFailed
	updated.Error = "model gbm: fit failed"
	require.NoError(t, s.Put(ctx, updated))
	got, err = s.Get(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "model gbm: fit failed", got.Error)
}

func TestMemoryStore(t *testing.T) {
	for _, compress := range []bool{true, false} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			s, err := New(config.StoreConfig{Type: "memory", Compress: compress})
			require.NoError(t, err)
			defer func() { _ = s.Close() }()
			storeContract(t, s)
		})
	}
}

func TestMemoryStore_FramesCarryAlgorithm(t *testing.T) {
	s := NewMemoryStore(0)
	require.NoError(t, s.Put(context.Background(), sampleRecord("r", testCreated)))

	frame := s.entries["r"].frame
	assert.Equal(t, byte(compression.Snappy), frame[0])
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	now := testCreated
	s.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sampleRecord("old", testCreated)))
	now = now.Add(30 * time.Minute)
	require.NoError(t, s.Put(ctx, sampleRecord("new", now)))

	now = now.Add(45 * time.Minute)
	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New(config.StoreConfig{Type: "postgres"})
	assert.Error(t, err)

	_, err = New(config.StoreConfig{Type: "redis", URL: "redis://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if client.Ping(ctx).Err() != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping test")
	}

	prefix := fmt.Sprintf("ratecast-test:%d:", time.Now().UnixNano())
	s := NewRedisStoreWithClient(client, prefix, time.Minute, true)
	defer func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		_ = s.Close()
	}()

	storeContract(t, s)

	// an expired record leaves a dangling index entry that List prunes
	require.NoError(t, client.Del(context.Background(), s.key("run-1")).Err())
	list, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "run-2", list[0].ID)
	card, err := client.ZCard(context.Background(), s.indexKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}
