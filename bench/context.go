package bench

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/sim"
)

type ctxKey int

const (
	schedulerKey ctxKey = iota
	taskKey
)

// ErrNotInTask is returned by the context helpers when the context does not
// belong to a task of a scheduler.
var ErrNotInTask = errors.New("not called from a bench task")

// SchedulerFrom returns the scheduler that runs the task owning ctx.
func SchedulerFrom(ctx context.Context) (*Scheduler, error) {
	s, ok := ctx.Value(schedulerKey).(*Scheduler)
	if !ok {
		return nil, ErrNotInTask
	}

	return s, nil
}

// CurrentTask returns the task owning ctx, or nil.
func CurrentTask(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey).(*Task)
	return t
}

// StartSoon queues fn as a new task of the scheduler that runs ctx. The task
// starts at the current simulated time, once the caller yields.
func StartSoon(ctx context.Context, name string, fn TaskFunc) (*Task, error) {
	s, err := SchedulerFrom(ctx)
	if err != nil {
		return nil, err
	}

	return s.StartSoon(name, fn), nil
}

// Await suspends the task owning ctx until the trigger fires. It returns the
// context error if the task is cancelled while waiting.
func Await(ctx context.Context, trigger Trigger) error {
	t := CurrentTask(ctx)
	if t == nil {
		return ErrNotInTask
	}

	return t.await(trigger)
}

// Now returns the current simulated time of the scheduler that runs ctx.
func Now(ctx context.Context) sim.VTime {
	s, err := SchedulerFrom(ctx)
	if err != nil {
		return 0
	}

	return s.engine.CurrentTime()
}

// Logger returns the logger of the scheduler that runs ctx, tagged with the
// name of the current task. Outside a task it returns slog.Default().
func Logger(ctx context.Context) *slog.Logger {
	s, err := SchedulerFrom(ctx)
	if err != nil {
		return slog.Default()
	}

	if t := CurrentTask(ctx); t != nil {
		return s.logger.With("task", t.name)
	}

	return s.logger
}
