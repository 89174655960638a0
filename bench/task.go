package bench

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context) error

// A Task is a coroutine run by a Scheduler. A task runs only while every
// other task and the engine wait for it, so tasks never run in parallel.
type Task struct {
	id    string
	name  string
	fn    TaskFunc
	sched *Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	resume chan struct{}
	yield  chan struct{}

	started bool
	done    bool
	err     error

	joiners []*joiner
}

type joiner struct {
	fire      func()
	cancelled bool
}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// ID returns the unique ID of the task.
func (t *Task) ID() string {
	return t.id
}

// Done tells if the task has returned.
func (t *Task) Done() bool {
	return t.done
}

// Err returns the error the task returned.
func (t *Task) Err() error {
	return t.err
}

// Cancel cancels the context of the task. A waiting task resumes with the
// context error at its next wake up.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) String() string {
	return fmt.Sprintf("Task(%s)", t.name)
}

func (t *Task) run() {
	<-t.resume

	t.err = t.call()
	t.done = true

	t.yield <- struct{}{}
}

func (t *Task) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task %s panicked: %v", t.name, r)
		}
	}()

	return t.fn(t.ctx)
}

func (t *Task) await(trigger Trigger) error {
	if err := t.ctx.Err(); err != nil {
		return err
	}

	fired := false
	cancel, err := trigger.Prime(t.sched, func() {
		if fired {
			return
		}

		fired = true
		t.sched.wake(t)
	})
	if err != nil {
		return errors.Wrapf(err, "awaiting %s", trigger)
	}

	t.yield <- struct{}{}
	<-t.resume

	cancel()

	if !fired {
		if err := t.ctx.Err(); err != nil {
			return err
		}

		return context.Canceled
	}

	return nil
}

func (t *Task) addJoiner(fire func()) *joiner {
	j := &joiner{fire: fire}
	t.joiners = append(t.joiners, j)

	return j
}

func (t *Task) notifyJoiners() {
	joiners := t.joiners
	t.joiners = nil

	for _, j := range joiners {
		if !j.cancelled {
			j.fire()
		}
	}
}
