package jobs

import "fmt"

// Registry holds the configured jobs by name, preserving configuration
// order for listings.
type Registry struct {
	byName map[string]*Job
	order  []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Job)}
}

// Add registers a job. Duplicate names are a configuration bug caught by
// config.Validate, so Add treats them as an error rather than overwriting.
func (r *Registry) Add(job *Job) error {
	if job == nil || job.Name() == "" {
		return fmt.Errorf("registry: job must have a name")
	}
	if _, exists := r.byName[job.Name()]; exists {
		return fmt.Errorf("registry: job %q already registered", job.Name())
	}
	r.byName[job.Name()] = job
	r.order = append(r.order, job.Name())
	return nil
}

// Get returns the named job, if registered.
func (r *Registry) Get(name string) (*Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

// Names lists registered job names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the registered jobs in configuration order.
func (r *Registry) All() []*Job {
	out := make([]*Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
