// Package worker runs the job loop: claim the next job, dispatch it to the
// handler registered for its type, record the outcome.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/timmy/coursegen/internal/domain"
)

// Handler executes one job type.
type Handler interface {
	Execute(ctx context.Context, job *domain.Job) (*domain.JobOutput, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *domain.Job) (*domain.JobOutput, error)

func (f HandlerFunc) Execute(ctx context.Context, job *domain.Job) (*domain.JobOutput, error) {
	return f(ctx, job)
}

// Registry maps job types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.JobType]Handler)}
}

// Register sets the handler for t, replacing any previous one.
func (r *Registry) Register(t domain.JobType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Execute dispatches job to its handler.
func (r *Registry) Execute(ctx context.Context, job *domain.Job) (*domain.JobOutput, error) {
	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type %s", job.Type)
	}
	return h.Execute(ctx, job)
}

// Types lists registered job types.
func (r *Registry) Types() []domain.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
