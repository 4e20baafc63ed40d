package jobs

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/travigo/tsiconverter/pkg/formats"
)

type Transition struct {
	State State     `json:"state" groups:"detailed"`
	At    time.Time `json:"at" groups:"detailed"`
}

// Status is a point in time view of a job
type Status struct {
	JobID    string         `json:"job_id" groups:"basic,detailed"`
	TenantID string         `json:"tenant_id" groups:"detailed"`
	Target   formats.Target `json:"output_format" groups:"basic,detailed"`

	State    State  `json:"status" groups:"basic,detailed"`
	Progress int    `json:"progress" groups:"basic,detailed"`
	Step     string `json:"current_step" groups:"basic,detailed"`

	Failure  *Failure `json:"error,omitempty" groups:"basic,detailed"`
	Warnings []Issue  `json:"warnings,omitempty" groups:"detailed"`

	Transitions []Transition `json:"transitions" groups:"detailed"`

	CreatedAt time.Time `json:"created_at" groups:"basic,detailed"`
	UpdatedAt time.Time `json:"updated_at" groups:"basic,detailed"`
}

type record struct {
	status   Status
	request  Request
	settings Settings
	deadline time.Time
}

// Registry is the only shared state between workers. Every read and write of
// a job goes through its lock so a status never mixes two updates.
type Registry struct {
	mutex   sync.RWMutex
	records map[string]*record
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		records: map[string]*record{},
		now:     time.Now,
	}
}

func (r *Registry) create(jobID string, request Request, settings Settings) Status {
	now := r.now()

	job := &record{
		status: Status{
			JobID:       jobID,
			TenantID:    request.TenantID,
			Target:      request.Target,
			State:       StateQueued,
			Progress:    progress[StateQueued],
			Step:        StateQueued.Step(),
			Transitions: []Transition{{State: StateQueued, At: now}},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		request:  request,
		settings: settings,
		deadline: now.Add(settings.Timeout),
	}

	r.mutex.Lock()
	r.records[jobID] = job
	r.mutex.Unlock()

	return snapshot(&job.status)
}

func snapshot(status *Status) Status {
	var copied Status
	if err := copier.CopyWithOption(&copied, status, copier.Option{DeepCopy: true}); err != nil {
		copied = *status
	}

	return copied
}

func (r *Registry) Get(jobID string) (Status, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	job, exists := r.records[jobID]
	if !exists {
		return Status{}, false
	}

	return snapshot(&job.status), true
}

func (r *Registry) remove(jobID string) {
	r.mutex.Lock()
	delete(r.records, jobID)
	r.mutex.Unlock()
}

// work returns what a worker needs to run the job
func (r *Registry) work(jobID string) (Request, Settings, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	job, exists := r.records[jobID]
	if !exists {
		return Request{}, Settings{}, false
	}

	return job.request, job.settings, true
}

// releasePayload drops the raw input once it has been parsed
func (r *Registry) releasePayload(jobID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if job, exists := r.records[jobID]; exists {
		job.request.Payload = nil
	}
}

func (r *Registry) Transition(jobID string, to State) (Status, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	job, exists := r.records[jobID]
	if !exists {
		return Status{}, ErrNotFound
	}
	if job.status.State.Terminal() {
		return snapshot(&job.status), ErrTerminal
	}
	if !job.status.State.CanTransition(to) {
		return snapshot(&job.status), ErrInvalidTransition
	}

	r.apply(job, to)

	return snapshot(&job.status), nil
}

func (r *Registry) apply(job *record, to State) {
	now := r.now()

	job.status.State = to
	job.status.Step = to.Step()
	if value, exists := progress[to]; exists && value > job.status.Progress {
		job.status.Progress = value
	}
	job.status.Transitions = append(job.status.Transitions, Transition{State: to, At: now})
	job.status.UpdatedAt = now
}

// Fail moves a running job to failed. The first failure wins, later ones
// get ErrTerminal.
func (r *Registry) Fail(jobID string, failure *Failure) (Status, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	job, exists := r.records[jobID]
	if !exists {
		return Status{}, ErrNotFound
	}
	if job.status.State.Terminal() {
		return snapshot(&job.status), ErrTerminal
	}

	job.status.Failure = failure
	r.apply(job, StateFailed)

	return snapshot(&job.status), nil
}

func (r *Registry) addWarnings(jobID string, warnings []Issue) {
	if len(warnings) == 0 {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if job, exists := r.records[jobID]; exists {
		job.status.Warnings = append(job.status.Warnings, warnings...)
	}
}

// Overdue lists running jobs past their wall clock budget
func (r *Registry) Overdue(now time.Time) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var overdue []string
	for jobID, job := range r.records {
		if !job.status.State.Terminal() && now.After(job.deadline) {
			overdue = append(overdue, jobID)
		}
	}

	return overdue
}

// Unfinished lists jobs not yet in a terminal state
func (r *Registry) Unfinished() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var unfinished []string
	for jobID, job := range r.records {
		if !job.status.State.Terminal() {
			unfinished = append(unfinished, jobID)
		}
	}

	return unfinished
}

// Prune removes finished jobs last updated before the cutoff
func (r *Registry) Prune(cutoff time.Time) []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var pruned []string
	for jobID, job := range r.records {
		if job.status.State.Terminal() && job.status.UpdatedAt.Before(cutoff) {
			delete(r.records, jobID)
			pruned = append(pruned, jobID)
		}
	}

	return pruned
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.records)
}
