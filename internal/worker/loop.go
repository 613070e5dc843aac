package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/queue"
)

// State is where a Loop is in its cycle.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateDispatching
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ErrHandlerPanic is returned by RunOnce when a handler panicked.
var ErrHandlerPanic = errors.New("handler panicked")

// Config tunes a Loop.
type Config struct {
	ID           string
	PollInterval time.Duration // sleep when the queue is empty
	ErrorBackoff time.Duration // sleep after an unexpected error
}

// Loop is a single-threaded worker. Several loops, in one process or many,
// can share a queue: the claim protocol hands each job to one of them.
type Loop struct {
	queue    queue.Queue
	handlers Handler
	wakeups  <-chan struct{}
	cfg      Config
	state    atomic.Int32
}

// NewLoop creates a loop. wakeups may be nil, in which case an idle loop
// waits out the full poll interval.
func NewLoop(q queue.Queue, handlers Handler, wakeups <-chan struct{}, cfg Config) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	return &Loop{queue: q, handlers: handlers, wakeups: wakeups, cfg: cfg}
}

// State reports the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Run processes jobs until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ctx = logger.WithFields(ctx, logger.Fields{"worker": l.cfg.ID})
	logger.CtxInfo(ctx, "[worker] loop started, poll=%s backoff=%s", l.cfg.PollInterval, l.cfg.ErrorBackoff)
	defer l.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			logger.CtxInfo(ctx, "[worker] loop stopped")
			return nil
		}

		processed, err := l.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			// shutting down
		case err != nil:
			logger.FromContext(ctx).WithError(err).Error("[worker] iteration failed, backing off")
			l.sleep(ctx, l.cfg.ErrorBackoff, false)
		case !processed:
			l.sleep(ctx, l.cfg.PollInterval, true)
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job
// was claimed. Handler errors mark the job failed and are not returned;
// the error result is reserved for store failures and panics.
//
// Cancelling ctx stops the claim, not a claimed job: the handler and the
// final status write run to completion on a context detached from ctx.
func (l *Loop) RunOnce(ctx context.Context) (bool, error) {
	l.setState(StateScanning)
	job, err := l.queue.ClaimNext(ctx)
	if err != nil {
		l.setState(StateIdle)
		return false, fmt.Errorf("failed to claim next job: %w", err)
	}
	if job == nil {
		l.setState(StateIdle)
		return false, nil
	}

	l.setState(StateDispatching)
	defer l.setState(StateIdle)
	return true, l.process(context.WithoutCancel(ctx), job)
}

func (l *Loop) process(ctx context.Context, job *domain.Job) error {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:   job.JobID,
		logger.FieldJobType: string(job.Type),
		logger.FieldOwnerID: job.OwnerID,
	})
	start := time.Now()
	logger.CtxInfo(ctx, "[worker] job claimed")

	if job.InputErr != nil {
		return l.fail(ctx, job, job.InputErr.Error(), nil)
	}

	out, err := l.dispatch(ctx, job)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		var loopErr error
		if errors.Is(err, ErrHandlerPanic) {
			loopErr = err
		}
		logger.With(logger.Fields{}).WithDuration(elapsed).Warn(ctx, "[worker] job failed: %v", err)
		return l.fail(ctx, job, err.Error(), loopErr)
	}

	if err := l.queue.Complete(ctx, job, out); err != nil {
		return l.fail(ctx, job, "failed to record job result: "+err.Error(), err)
	}
	logger.With(logger.Fields{"output_key": out.Key}).WithDuration(elapsed).Info(ctx, "[worker] job done")
	return nil
}

// dispatch runs the handler, converting a panic into an error.
func (l *Loop) dispatch(ctx context.Context, job *domain.Job) (out *domain.JobOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.With(logger.Fields{"stack": string(debug.Stack())}).Error(ctx, "[worker] handler panic: %v", r)
			out, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	out, err = l.handlers.Execute(ctx, job)
	if err == nil && out == nil {
		err = fmt.Errorf("handler for %s returned no output", job.Type)
	}
	return out, err
}

// fail marks job failed and returns cause, or the marking error if the
// store rejected it.
func (l *Loop) fail(ctx context.Context, job *domain.Job, message string, cause error) error {
	if err := l.queue.Fail(ctx, job, message); err != nil {
		logger.FromContext(ctx).WithError(err).Error("[worker] could not mark job failed")
		return fmt.Errorf("failed to mark job %s failed: %w", job.JobID, err)
	}
	return cause
}

func (l *Loop) sleep(ctx context.Context, d time.Duration, wakeable bool) {
	l.setState(StateSleeping)
	defer l.setState(StateIdle)

	timer := time.NewTimer(d)
	defer timer.Stop()

	var wake <-chan struct{}
	if wakeable {
		wake = l.wakeups
	}
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-wake:
	}
}
