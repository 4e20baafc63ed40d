package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/tsiconverter/pkg/formats"
	"golang.org/x/exp/slices"
)

type Artifact struct {
	JobID    string         `json:"job_id"`
	TenantID string         `json:"tenant_id"`
	Target   formats.Target `json:"output_format"`

	Files map[string][]byte `json:"files"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *Artifact) Names() []string {
	names := make([]string, 0, len(a.Files))
	for name := range a.Files {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func (a *Artifact) File(name string) ([]byte, error) {
	data, exists := a.Files[name]
	if !exists {
		return nil, ErrFileNotFound
	}

	return data, nil
}

// ContentType is picked from the file extension
func ContentType(filename string) string {
	switch path.Ext(filename) {
	case ".zip":
		return "application/zip"
	case ".txt", ".edi":
		return "text/plain"
	case ".pb":
		return "application/x-protobuf"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// ArtifactStore keeps completed artifacts for a bounded time. Get returns
// ErrNotFound once an artifact is evicted.
type ArtifactStore interface {
	Put(ctx context.Context, artifact *Artifact, ttl time.Duration) error
	Get(ctx context.Context, jobID string) (*Artifact, error)
	Delete(ctx context.Context, jobID string) error
}

type MemoryArtifactStore struct {
	mutex     sync.RWMutex
	artifacts map[string]*Artifact
	now       func() time.Time
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		artifacts: map[string]*Artifact{},
		now:       time.Now,
	}
}

func (s *MemoryArtifactStore) Put(_ context.Context, artifact *Artifact, ttl time.Duration) error {
	artifact.ExpiresAt = s.now().Add(ttl)

	s.mutex.Lock()
	s.artifacts[artifact.JobID] = artifact
	s.mutex.Unlock()

	return nil
}

func (s *MemoryArtifactStore) Get(_ context.Context, jobID string) (*Artifact, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	artifact, exists := s.artifacts[jobID]
	if !exists || !s.now().Before(artifact.ExpiresAt) {
		return nil, ErrNotFound
	}

	return artifact, nil
}

func (s *MemoryArtifactStore) Delete(_ context.Context, jobID string) error {
	s.mutex.Lock()
	delete(s.artifacts, jobID)
	s.mutex.Unlock()

	return nil
}

// Sweep evicts expired artifacts and returns how many went
func (s *MemoryArtifactStore) Sweep(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	evicted := 0
	for jobID, artifact := range s.artifacts {
		if !now.Before(artifact.ExpiresAt) {
			delete(s.artifacts, jobID)
			evicted++
		}
	}

	return evicted
}

// RedisArtifactStore keeps artifacts as JSON in redis, expiry is left to redis
type RedisArtifactStore struct {
	client *redis.Client
	cache  *cache.Cache[string]
	now    func() time.Time
}

func NewRedisArtifactStore(client *redis.Client) *RedisArtifactStore {
	redisStore := redisstore.NewRedis(client)

	return &RedisArtifactStore{
		client: client,
		cache:  cache.New[string](redisStore),
		now:    time.Now,
	}
}

func artifactKey(jobID string) string {
	return fmt.Sprintf("tsiconverter:artifact:%s", jobID)
}

func (s *RedisArtifactStore) Put(ctx context.Context, artifact *Artifact, ttl time.Duration) error {
	artifact.ExpiresAt = s.now().Add(ttl)

	encoded, err := json.Marshal(artifact)
	if err != nil {
		return err
	}

	return s.cache.Set(ctx, artifactKey(artifact.JobID), string(encoded), store.WithExpiration(ttl))
}

func (s *RedisArtifactStore) Get(ctx context.Context, jobID string) (*Artifact, error) {
	encoded, err := s.cache.Get(ctx, artifactKey(jobID))
	if err != nil {
		notFound := &store.NotFound{}
		if errors.As(err, &notFound) || errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		if count, existsErr := s.client.Exists(ctx, artifactKey(jobID)).Result(); existsErr == nil && count == 0 {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if encoded == "" {
		return nil, ErrNotFound
	}

	var artifact *Artifact
	if err := json.Unmarshal([]byte(encoded), &artifact); err != nil {
		return nil, err
	}

	return artifact, nil
}

func (s *RedisArtifactStore) Delete(ctx context.Context, jobID string) error {
	return s.cache.Delete(ctx, artifactKey(jobID))
}
