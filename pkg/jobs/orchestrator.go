package jobs

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/config"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/validation"
)

const DefaultTenant = "default"

// Request is one conversion submitted by a tenant
type Request struct {
	Payload  []byte
	Charset  string
	Target   formats.Target
	TenantID string
	Options  Options
}

// ValidationRequest validates either a canonical document or an already
// serialized EDIFACT interchange or GTFS bundle
type ValidationRequest struct {
	Payload []byte
	Charset string

	Content string
	Files   map[string][]byte

	Format   formats.Validation
	Level    formats.Level
	TenantID string
}

type Defaults struct {
	JobTimeout         time.Duration
	ArtifactTTL        time.Duration
	RecordRetention    time.Duration
	SupervisorInterval time.Duration

	Edifact edifact.Options
}

func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		JobTimeout:         cfg.JobTimeout.Duration(),
		ArtifactTTL:        cfg.ArtifactTTL.Duration(),
		RecordRetention:    cfg.RecordRetention.Duration(),
		SupervisorInterval: cfg.SupervisorInterval.Duration(),
		Edifact: edifact.Options{
			Version:  cfg.Edifact.Version,
			UNA:      cfg.Edifact.UNA,
			Sender:   cfg.Edifact.Sender,
			Receiver: cfg.Edifact.Receiver,
		},
	}
}

type Orchestrator struct {
	registry  *Registry
	queue     Queue
	artifacts ArtifactStore
	engine    *validation.Engine
	defaults  Defaults

	supervisor *Supervisor

	now func() time.Time

	// called after every state a worker moves a job into
	stageHook func(jobID string, state State)
}

func New(registry *Registry, queue Queue, artifacts ArtifactStore, engine *validation.Engine, defaults Defaults) *Orchestrator {
	if engine == nil {
		engine = validation.NewEngine(nil)
	}

	orchestrator := &Orchestrator{
		registry:  registry,
		queue:     queue,
		artifacts: artifacts,
		engine:    engine,
		defaults:  defaults,
		now:       time.Now,
	}
	orchestrator.supervisor = NewSupervisor(orchestrator, defaults.SupervisorInterval)

	return orchestrator
}

// Start runs the workers and the supervisor until ctx is done or Stop is called
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.queue.Start(ctx, o.process); err != nil {
		return err
	}

	go o.supervisor.Run(ctx)

	return nil
}

// Stop waits for running jobs; jobs that never reached a worker are failed
// since nothing will pick them up again
func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
	o.queue.Stop()

	for _, jobID := range o.registry.Unfinished() {
		o.fail(jobID, &Failure{
			Kind:      FailureInternal,
			Message:   "orchestrator stopped before the job ran, retry the request",
			Retryable: true,
		})
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) QueueStats() (QueueStats, error) {
	return o.queue.Stats()
}

// Submit records the job and queues it without waiting for any work to happen
func (o *Orchestrator) Submit(ctx context.Context, request Request) (string, error) {
	target, err := formats.ParseTarget(string(request.Target))
	if err != nil {
		return "", ErrUnsupportedFormat
	}
	request.Target = target
	if request.TenantID == "" {
		request.TenantID = DefaultTenant
	}

	settings, err := ParseOptions(request.Options, request.Target, o.defaults, o.now())
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	o.registry.create(jobID, request, settings)

	if err := o.queue.Enqueue(jobID); err != nil {
		o.registry.remove(jobID)
		return "", err
	}

	log.Info().
		Str("job", jobID).
		Str("tenant", request.TenantID).
		Str("format", string(request.Target)).
		Msg("Job submitted")

	return jobID, nil
}

func (o *Orchestrator) Status(jobID string, tenantID string) (Status, error) {
	status, exists := o.registry.Get(jobID)
	if !exists || status.TenantID != tenant(tenantID) {
		return Status{}, ErrNotFound
	}

	return status, nil
}

// Wait polls until the job reaches a terminal state
func (o *Orchestrator) Wait(ctx context.Context, jobID string, tenantID string) (Status, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := o.Status(jobID, tenantID)
		if err != nil || status.State.Terminal() {
			return status, err
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Artifact returns the output of a completed job. Failed jobs and evicted
// artifacts are not found, running jobs are not ready.
func (o *Orchestrator) Artifact(ctx context.Context, jobID string, tenantID string) (*Artifact, error) {
	status, err := o.Status(jobID, tenantID)
	if err != nil {
		return nil, err
	}

	switch status.State {
	case StateCompleted:
		return o.artifacts.Get(ctx, jobID)
	case StateFailed:
		return nil, ErrNotFound
	default:
		return nil, ErrNotReady
	}
}

func (o *Orchestrator) Cancel(jobID string, tenantID string) (Status, error) {
	if _, err := o.Status(jobID, tenantID); err != nil {
		return Status{}, err
	}

	status, err := o.registry.Fail(jobID, &Failure{
		Kind:    FailureCancelled,
		Message: "job cancelled",
	})
	if err != nil {
		return status, err
	}

	log.Info().Str("job", jobID).Str("tenant", status.TenantID).Msg("Job cancelled")

	return status, nil
}

// Validate runs synchronously, no job is recorded
func (o *Orchestrator) Validate(ctx context.Context, request ValidationRequest) (validation.Report, error) {
	format, err := formats.ParseValidation(string(request.Format))
	if err != nil {
		return validation.Report{}, ErrUnsupportedFormat
	}
	request.Format = format

	level := request.Level
	if level == "" {
		level = formats.LevelStandard
	}

	switch {
	case request.Format == formats.ValidationEdifact && request.Content != "":
		return validation.ValidateEDIFACT(request.Content, level), nil
	case request.Format == formats.ValidationGTFS && len(request.Files) > 0:
		return validation.ValidateGTFS(request.Files, level), nil
	}

	report, _ := o.engine.ValidateReader(bytes.NewReader(request.Payload), request.Charset, request.Format, level)

	return report, nil
}

func tenant(tenantID string) string {
	if tenantID == "" {
		return DefaultTenant
	}

	return tenantID
}
