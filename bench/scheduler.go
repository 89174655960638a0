// Package bench runs testbench coroutines on top of the event engine.
//
// Each task is a goroutine, but control is handed off explicitly: the engine
// resumes one task and blocks until that task awaits a trigger or returns.
// The result is the cooperative, single-threaded scheduling that simulation
// test frameworks offer, with fully deterministic event ordering.
package bench

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/sim"
)

// ErrTimeout is returned by Run when the main task does not finish within the
// given simulated time.
var ErrTimeout = errors.New("test timed out")

// ErrStalled is returned by Run when the engine runs out of events while the
// main task still waits.
var ErrStalled = errors.New("simulation ran out of events before the test finished")

type startEvent struct {
	*sim.EventBase
	task *Task
}

type resumeEvent struct {
	*sim.EventBase
	task *Task
}

type timeoutEvent struct {
	*sim.EventBase
}

// An endEvent stops the engine once the time step in which the main task
// returned has settled.
type endEvent struct {
	*sim.EventBase
}

// A Scheduler runs tasks on an engine.
type Scheduler struct {
	engine sim.Engine
	logger *slog.Logger

	baseCtx context.Context
	tasks   []*Task
	main    *Task
	ending  bool
	closed  bool

	failureLock sync.Mutex
	failure     error
}

// NewScheduler creates a scheduler that runs tasks on the engine.
func NewScheduler(engine sim.Engine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		engine: engine,
		logger: logger,
	}
	s.baseCtx = context.WithValue(context.Background(), schedulerKey, s)

	return s
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return "Scheduler"
}

// Engine returns the engine the scheduler runs on.
func (s *Scheduler) Engine() sim.Engine {
	return s.engine
}

// Tasks returns every task started so far.
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)

	return out
}

// StartSoon queues a task that starts at the current time, after all the
// events already scheduled for this time.
func (s *Scheduler) StartSoon(name string, fn TaskFunc) *Task {
	t := &Task{
		id:     sim.GetIDGenerator().Generate(),
		name:   name,
		fn:     fn,
		sched:  s,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	t.ctx = context.WithValue(ctx, taskKey, t)
	t.cancel = cancel

	s.tasks = append(s.tasks, t)

	if s.closed {
		t.done = true
		t.err = context.Canceled
		cancel()

		return t
	}

	now := s.engine.CurrentTime()
	s.engine.Schedule(startEvent{sim.NewEventBase(now, s), t})

	return t
}

// Run starts fn as the main task and runs the engine until the main task
// returns and the writes of that time step are applied. No task runs after
// the main task returns. A timeout of zero means no timeout.
//
// Run returns the error of the main task, the first error of a background
// task, ErrTimeout, ErrStalled, or the error of the engine. Tasks still
// running when the main task returns are cancelled.
func (s *Scheduler) Run(
	ctx context.Context,
	name string,
	fn TaskFunc,
	timeout sim.VTime,
) error {
	s.baseCtx = context.WithValue(ctx, schedulerKey, s)

	stopWatching := make(chan struct{})
	defer close(stopWatching)

	go func() {
		select {
		case <-ctx.Done():
			s.abort(errors.Wrap(ctx.Err(), "run interrupted"))
		case <-stopWatching:
		}
	}()

	s.main = s.StartSoon(name, fn)

	if timeout > 0 {
		at := s.engine.CurrentTime() + timeout
		s.engine.Schedule(timeoutEvent{sim.NewEventBase(at, s)})
	}

	engineErr := s.engine.Run()
	mainDone := s.main.done

	s.shutdown()

	switch {
	case engineErr != nil:
		return errors.Wrap(engineErr, "engine failed")
	case s.Failure() != nil:
		return s.Failure()
	case !mainDone:
		return ErrStalled
	default:
		return s.main.err
	}
}

// Failure returns the first error that aborted the run.
func (s *Scheduler) Failure() error {
	s.failureLock.Lock()
	defer s.failureLock.Unlock()

	return s.failure
}

func (s *Scheduler) abort(err error) {
	s.failureLock.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.failureLock.Unlock()

	s.engine.Stop()
}

// Handle starts and resumes tasks.
func (s *Scheduler) Handle(e sim.Event) error {
	switch e := e.(type) {
	case startEvent:
		s.start(e.task)
	case resumeEvent:
		if !e.task.done && !s.ending && !s.closed {
			s.switchTo(e.task)
		}
	case endEvent:
		s.engine.Stop()
	case timeoutEvent:
		if s.main != nil && !s.main.done {
			s.abort(errors.Wrapf(ErrTimeout, "after %s", e.Time()))
		}
	default:
		return errors.Errorf("scheduler cannot handle %T", e)
	}

	return nil
}

func (s *Scheduler) start(t *Task) {
	if t.done || s.ending || s.closed {
		return
	}

	if err := t.ctx.Err(); err != nil {
		t.done = true
		t.err = err
		s.finished(t)

		return
	}

	t.started = true
	go t.run()

	s.logger.Debug("task started", "task", t.name)
	s.switchTo(t)
}

func (s *Scheduler) switchTo(t *Task) {
	t.resume <- struct{}{}
	<-t.yield

	if t.done {
		s.finished(t)
	}
}

func (s *Scheduler) wake(t *Task) {
	now := s.engine.CurrentTime()
	s.engine.Schedule(resumeEvent{sim.NewEventBase(now, s), t})
}

func (s *Scheduler) finished(t *Task) {
	t.cancel()
	t.notifyJoiners()

	s.logger.Debug("task finished", "task", t.name, "error", t.err)

	if t == s.main {
		s.ending = true
		now := s.engine.CurrentTime()
		s.engine.Schedule(endEvent{sim.NewSecondaryEventBase(now, s)})

		return
	}

	if t.err != nil && !s.closed && !errors.Is(t.err, context.Canceled) {
		s.abort(errors.Wrapf(t.err, "task %s failed", t.name))
	}
}

// shutdown cancels every task that has not returned and lets the waiting
// ones unwind.
func (s *Scheduler) shutdown() {
	s.closed = true

	for _, t := range s.tasks {
		if t.done {
			continue
		}

		t.cancel()

		if !t.started {
			t.done = true
			t.err = context.Canceled

			continue
		}

		s.switchTo(t)
	}
}
