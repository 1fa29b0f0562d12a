// Package workflow runs multi-step jobs whose step results are checkpointed,
// so a job interrupted mid-way resumes from its last completed step when it
// is run again with the same instance id.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/sirupsen/logrus"
)

// StepOptions configures a single step. Retry nil means one attempt; Limited
// steps share the engine-wide concurrency limit.
type StepOptions struct {
	Retry   *RetryPolicy
	Limited bool
}

// Attempt describes one execution of a step, reported to the attempt hook.
type Attempt struct {
	InstanceID string
	Step       string
	Number     int
	Err        error
	Final      bool
}

type Option func(*Engine)

// WithSleep replaces the backoff sleep; tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

func WithAttemptHook(fn func(Attempt)) Option {
	return func(e *Engine) { e.onAttempt = fn }
}

type Engine struct {
	journal   Journal
	sem       chan struct{}
	sleep     func(ctx context.Context, d time.Duration) error
	onAttempt func(Attempt)
}

func NewEngine(journal Journal, maxParallelism int, opts ...Option) *Engine {
	if maxParallelism <= 0 {
		maxParallelism = 1
	}
	e := &Engine{
		journal: journal,
		sem:     make(chan struct{}, maxParallelism),
		sleep:   sleepContext,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run is one workflow instance.
type Run struct {
	engine     *Engine
	instanceID string
}

func (e *Engine) Instance(instanceID string) *Run {
	return &Run{engine: e, instanceID: instanceID}
}

func (r *Run) ID() string {
	return r.instanceID
}

// Step executes fn at most once per instance: a checkpointed result is
// returned as-is on replay, otherwise fn runs under opts and its result is
// saved before Step returns.
func Step[T any](ctx context.Context, run *Run, name string, opts StepOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	e := run.engine
	log := logger.Log.WithFields(logrus.Fields{"instance_id": run.instanceID, "step": name})

	if data, ok, err := e.journal.Load(ctx, run.instanceID, name); err != nil {
		return zero, fmt.Errorf("loading checkpoint for step %s: %w", name, err)
	} else if ok {
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return zero, fmt.Errorf("decoding checkpoint for step %s: %w", name, err)
		}
		log.Debug("step replayed from checkpoint")
		return out, nil
	}

	policy := RetryPolicy{MaxAttempts: 1}
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	maxAttempts := policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := runAttempt(ctx, e, opts.Limited, fn)
		final := err == nil || attempt == maxAttempts || IsPermanent(err) || ctx.Err() != nil
		if e.onAttempt != nil {
			e.onAttempt(Attempt{InstanceID: run.instanceID, Step: name, Number: attempt, Err: err, Final: final})
		}

		if err == nil {
			if sErr := save(ctx, run, name, out); sErr != nil {
				return zero, sErr
			}
			log.WithField("attempt", attempt).Debug("step completed")
			return out, nil
		}

		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("step attempt failed")
		if final {
			return zero, &StepError{Step: name, Attempts: attempt, Err: lastErr}
		}
		if sErr := e.sleep(ctx, policy.Backoff(attempt)); sErr != nil {
			return zero, &StepError{Step: name, Attempts: attempt, Err: lastErr}
		}
	}

	return zero, &StepError{Step: name, Attempts: maxAttempts, Err: lastErr}
}

// StepWithFallback is Step for a step whose final failure is itself an
// outcome: once fn fails for good, fallback turns the *StepError into an
// output that is checkpointed like a success, so a replay does not run fn
// again. Cancellation and journal errors are still returned.
func StepWithFallback[T any](ctx context.Context, run *Run, name string, opts StepOptions, fn func(ctx context.Context) (T, error), fallback func(*StepError) T) (T, error) {
	out, err := Step(ctx, run, name, opts, fn)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		return out, err
	}

	out = fallback(stepErr)
	if sErr := save(ctx, run, name, out); sErr != nil {
		var zero T
		return zero, sErr
	}
	return out, nil
}

func save[T any](ctx context.Context, run *Run, name string, out T) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding checkpoint for step %s: %w", name, err)
	}
	if err := run.engine.journal.Save(ctx, run.instanceID, name, data); err != nil {
		return fmt.Errorf("saving checkpoint for step %s: %w", name, err)
	}
	return nil
}

// runAttempt holds a concurrency slot only while fn runs, never during backoff.
func runAttempt[T any](ctx context.Context, e *Engine, limited bool, fn func(ctx context.Context) (T, error)) (T, error) {
	if limited {
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
		defer func() { <-e.sem }()
	}
	return fn(ctx)
}
