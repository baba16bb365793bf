package cron

import "context"

// Job is a unit of scheduled work executed by the cron service.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker runs each cycle. Jobs are keyed by name;
// registering a name twice keeps the first registration.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: make(map[string]struct{})}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job unless one with the same name is already present.
func (r *Registry) Register(job Job) {
	if job == nil || job.Name() == "" {
		return
	}
	if r.names == nil {
		r.names = make(map[string]struct{})
	}
	if _, exists := r.names[job.Name()]; exists {
		return
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
