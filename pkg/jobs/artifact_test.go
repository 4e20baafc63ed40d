package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/tsiconverter/pkg/formats"
)

func testArtifact() *Artifact {
	return &Artifact{
		JobID:    "job-1",
		TenantID: "t1",
		Target:   formats.TargetGTFS,
		Files: map[string][]byte{
			"stops.txt":  []byte("stop_id\nS1\n"),
			"agency.txt": []byte("agency_id\nA1\n"),
		},
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/zip", ContentType("gtfs.zip"))
	assert.Equal(t, "text/plain", ContentType("stops.txt"))
	assert.Equal(t, "text/plain", ContentType("skdupd.edi"))
	assert.Equal(t, "application/x-protobuf", ContentType("alerts.pb"))
	assert.Equal(t, "application/octet-stream", ContentType("README"))
}

func TestMemoryArtifactStoreExpires(t *testing.T) {
	store := NewMemoryArtifactStore()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(context.Background(), testArtifact(), time.Minute))

	artifact, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"agency.txt", "stops.txt"}, artifact.Names())
	assert.Equal(t, clock.Add(time.Minute), artifact.ExpiresAt)

	clock = clock.Add(time.Minute)
	_, err = store.Get(context.Background(), "job-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, store.Sweep(clock))
	assert.Equal(t, 0, store.Sweep(clock))

	require.NoError(t, store.Put(context.Background(), testArtifact(), time.Minute))
	require.NoError(t, store.Delete(context.Background(), "job-1"))
	_, err = store.Get(context.Background(), "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisArtifactStoreExpires(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisArtifactStore(client)

	require.NoError(t, store.Put(context.Background(), testArtifact(), time.Minute))
	assert.True(t, server.Exists(artifactKey("job-1")))

	artifact, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", artifact.TenantID)
	assert.Equal(t, []byte("stop_id\nS1\n"), artifact.Files["stops.txt"])

	server.FastForward(2 * time.Minute)

	_, err = store.Get(context.Background(), "job-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "never-stored")
	assert.ErrorIs(t, err, ErrNotFound)
}
