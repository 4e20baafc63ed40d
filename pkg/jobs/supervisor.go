package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type sweeper interface {
	Sweep(now time.Time) int
}

// Supervisor fails jobs that ran past their budget and forgets old records
type Supervisor struct {
	orchestrator *Orchestrator
	interval     time.Duration

	stop chan struct{}
	once sync.Once
}

func NewSupervisor(orchestrator *Orchestrator, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = time.Second
	}

	return &Supervisor{
		orchestrator: orchestrator,
		interval:     interval,
		stop:         make(chan struct{}),
	}
}

func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Check(s.orchestrator.now())
		}
	}
}

func (s *Supervisor) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Check runs one supervision pass as of now
func (s *Supervisor) Check(now time.Time) {
	o := s.orchestrator

	for _, jobID := range o.registry.Overdue(now) {
		o.fail(jobID, &Failure{
			Kind:    FailureTimeout,
			Message: "job exceeded its time budget",
		})
		log.Warn().Str("job", jobID).Msg("Job timed out")
	}

	if pruned := o.registry.Prune(now.Add(-o.defaults.RecordRetention)); len(pruned) > 0 {
		log.Debug().Int("count", len(pruned)).Msg("Pruned finished jobs")

		for _, jobID := range pruned {
			if err := o.artifacts.Delete(context.Background(), jobID); err != nil {
				log.Error().Err(err).Str("job", jobID).Msg("Failed to delete artifact of pruned job")
			}
		}
	}

	if store, ok := o.artifacts.(sweeper); ok {
		if evicted := store.Sweep(now); evicted > 0 {
			log.Debug().Int("count", evicted).Msg("Evicted expired artifacts")
		}
	}
}
