package cron

import "context"

// Job is a scheduled task run by the sweep worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds cron jobs in registration order. Job names are unique; a
// second job with the same name is ignored.
type Registry struct {
	jobs  []Job
	names map[string]bool
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]bool{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job unless it is nil or its name is already taken.
func (r *Registry) Register(job Job) {
	if job == nil || r.names[job.Name()] {
		return
	}
	if r.names == nil {
		r.names = map[string]bool{}
	}
	r.names[job.Name()] = true
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
