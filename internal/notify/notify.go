// Package notify carries "a job was enqueued" hints from producers to worker
// loops so an idle worker can scan before its poll interval expires. Hints are
// best effort: the store remains the source of truth and a lost hint only
// delays a job until the next poll.
package notify

import (
	"context"

	"github.com/timmy/coursegen/internal/domain"
)

// Notifier publishes and receives wake-up hints.
type Notifier interface {
	Publish(ctx context.Context, t domain.JobType) error

	// Wakeups yields one value per received hint. A nil channel never fires.
	Wakeups() <-chan struct{}

	Close() error
}

// Local delivers hints within one process.
type Local struct {
	ch chan struct{}
}

// NewLocal creates an in-process notifier.
func NewLocal() *Local {
	return &Local{ch: make(chan struct{}, 1)}
}

// Publish never blocks; pending hints coalesce.
func (l *Local) Publish(ctx context.Context, t domain.JobType) error {
	select {
	case l.ch <- struct{}{}:
	default:
	}
	return nil
}

func (l *Local) Wakeups() <-chan struct{} { return l.ch }

func (l *Local) Close() error { return nil }

// Noop drops hints. Workers fall back to polling.
type Noop struct{}

func (Noop) Publish(ctx context.Context, t domain.JobType) error { return nil }

func (Noop) Wakeups() <-chan struct{} { return nil }

func (Noop) Close() error { return nil }
