package jobs

import (
	"context"

	"github.com/travigo/tsiconverter/pkg/config"
	"github.com/travigo/tsiconverter/pkg/redis_client"
	"github.com/travigo/tsiconverter/pkg/validation"
)

// NewFromConfig builds an orchestrator on the backends named in the configuration
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	rules := validation.DefaultRegistry()
	if err := validation.RegisterCustomRules(rules, cfg.Validation.CustomRules); err != nil {
		return nil, err
	}

	if cfg.UsesRedis() {
		if err := redis_client.Connect(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}

	var queue Queue
	switch cfg.Queue.Backend {
	case config.BackendRedis:
		redisQueue, err := NewRedisQueue(redis_client.QueueConnection, cfg.Workers, cfg.QueueSize)
		if err != nil {
			return nil, err
		}
		queue = redisQueue
	default:
		queue = NewMemoryQueue(cfg.QueueSize, cfg.Workers)
	}

	var artifacts ArtifactStore
	switch cfg.Artifacts.Backend {
	case config.BackendRedis:
		artifacts = NewRedisArtifactStore(redis_client.Client)
	default:
		artifacts = NewMemoryArtifactStore()
	}

	return New(NewRegistry(), queue, artifacts, validation.NewEngine(rules), DefaultsFromConfig(cfg)), nil
}
