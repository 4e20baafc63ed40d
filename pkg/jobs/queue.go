package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Handler runs one job to completion
type Handler func(ctx context.Context, jobID string)

// Queue hands submitted job ids to a bounded set of workers. Enqueue never
// waits for a worker and returns ErrQueueFull when there is no room.
type Queue interface {
	Enqueue(jobID string) error
	Start(ctx context.Context, handler Handler) error
	Stop()
	Stats() (QueueStats, error)
}

type QueueStats struct {
	Backend  string `json:"backend"`
	Ready    int64  `json:"ready"`
	Rejected int64  `json:"rejected"`
	Capacity int    `json:"capacity"`
	Workers  int    `json:"workers"`
}

type MemoryQueue struct {
	pending chan string
	workers int

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewMemoryQueue(size int, workers int) *MemoryQueue {
	return &MemoryQueue{
		pending: make(chan string, size),
		workers: workers,
		done:    make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(jobID string) error {
	select {
	case q.pending <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Start(ctx context.Context, handler Handler) error {
	ctx, q.cancel = context.WithCancel(ctx)

	go func() {
		defer close(q.done)

		workers := pool.New().WithMaxGoroutines(q.workers)
		defer workers.Wait()

		for {
			select {
			case <-ctx.Done():
				return
			case jobID := <-q.pending:
				workers.Go(func() {
					handler(ctx, jobID)
				})
			}
		}
	}()

	log.Info().Str("queue", "memory").Int("workers", q.workers).Int("size", cap(q.pending)).Msg("Started job workers")

	return nil
}

// Stop waits for running jobs, queued ones are dropped
func (q *MemoryQueue) Stop() {
	q.once.Do(func() {
		if q.cancel == nil {
			close(q.done)
			return
		}
		q.cancel()
	})
	<-q.done
}

func (q *MemoryQueue) Stats() (QueueStats, error) {
	return QueueStats{
		Backend:  "memory",
		Ready:    int64(len(q.pending)),
		Capacity: cap(q.pending),
		Workers:  q.workers,
	}, nil
}

const JobQueueName = "tsiconverter-jobs"

type RedisQueue struct {
	connection rmq.Connection
	queue      rmq.Queue

	workers  int
	capacity int
}

// NewRedisQueue opens the durable job queue. A capacity of zero leaves the
// queue unbounded.
func NewRedisQueue(connection rmq.Connection, workers int, capacity int) (*RedisQueue, error) {
	queue, err := connection.OpenQueue(JobQueueName)
	if err != nil {
		return nil, err
	}

	return &RedisQueue{
		connection: connection,
		queue:      queue,
		workers:    workers,
		capacity:   capacity,
	}, nil
}

func (q *RedisQueue) Enqueue(jobID string) error {
	if q.capacity > 0 {
		stats, err := q.connection.CollectStats([]string{JobQueueName})
		if err != nil {
			return err
		}
		if stats.QueueStats[JobQueueName].ReadyCount >= int64(q.capacity) {
			return ErrQueueFull
		}
	}

	return q.queue.Publish(jobID)
}

func (q *RedisQueue) Start(ctx context.Context, handler Handler) error {
	if err := q.queue.StartConsuming(int64(q.workers), time.Second); err != nil {
		return err
	}

	for i := 0; i < q.workers; i++ {
		_, err := q.queue.AddConsumerFunc(fmt.Sprintf("job-worker-%d", i), func(delivery rmq.Delivery) {
			handler(ctx, delivery.Payload())

			if err := delivery.Ack(); err != nil {
				log.Error().Err(err).Str("job", delivery.Payload()).Msg("Failed to acknowledge job delivery")
			}
		})
		if err != nil {
			return err
		}
	}

	log.Info().Str("queue", JobQueueName).Int("workers", q.workers).Msg("Started job consumers")

	return nil
}

func (q *RedisQueue) Stop() {
	<-q.queue.StopConsuming()
}

func (q *RedisQueue) Stats() (QueueStats, error) {
	stats, err := q.connection.CollectStats([]string{JobQueueName})
	if err != nil {
		return QueueStats{}, err
	}

	queueStats := stats.QueueStats[JobQueueName]

	return QueueStats{
		Backend:  "redis",
		Ready:    queueStats.ReadyCount,
		Rejected: queueStats.RejectedCount,
		Capacity: q.capacity,
		Workers:  q.workers,
	}, nil
}
