package redis_client

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/config"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const queueConnectionTag = "tsiconverter"

// Connect opens the shared client and queue connection, retrying the first
// ping with exponential backoff while redis comes up
func Connect(ctx context.Context, redisConfig config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Address,
		Password: redisConfig.Password,
		DB:       redisConfig.Database,
	})

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.MaxElapsedTime = 30 * time.Second

	err := backoff.RetryNotify(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(retryBackoff, ctx), func(err error, next time.Duration) {
		log.Warn().Err(err).Str("address", redisConfig.Address).Msgf("Redis not reachable, retrying in %s", next)
	})
	if err != nil {
		client.Close()
		return err
	}

	errChan := make(chan error, 16)
	queueConnection, err := rmq.OpenConnectionWithRedisClient(queueConnectionTag, client, errChan)
	if err != nil {
		client.Close()
		return err
	}

	go func() {
		for err := range errChan {
			log.Error().Err(err).Msg("Queue connection error")
		}
	}()

	Client = client
	QueueConnection = queueConnection

	log.Info().Str("address", redisConfig.Address).Int("database", redisConfig.Database).Msg("Connected to Redis")

	return nil
}

func Close() error {
	if QueueConnection != nil {
		<-QueueConnection.StopAllConsuming()
	}
	if Client != nil {
		return Client.Close()
	}

	return nil
}
