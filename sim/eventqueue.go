package sim

import (
	"slices"
	"sync"
)

// EventQueue hands out events in time order. Events of the same time leave
// in the order they were pushed, which keeps runs reproducible.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

// TimeQueue is a thread safe EventQueue backed by a sorted slice. A
// testbench keeps only a handful of events pending at a time, so sorted
// insertion beats a heap here.
type TimeQueue struct {
	lock   sync.Mutex
	events []Event
}

// NewEventQueue creates an empty TimeQueue.
func NewEventQueue() *TimeQueue {
	return &TimeQueue{}
}

// Push inserts evt after every queued event that is not later than it.
func (q *TimeQueue) Push(evt Event) {
	q.lock.Lock()
	defer q.lock.Unlock()

	t := evt.Time()
	i, _ := slices.BinarySearchFunc(q.events, t,
		func(e Event, t VTime) int {
			if e.Time() <= t {
				return -1
			}

			return 1
		})

	q.events = slices.Insert(q.events, i, evt)
}

// Pop removes and returns the earliest event. It panics on an empty queue.
func (q *TimeQueue) Pop() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	evt := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]

	return evt
}

// Len returns the number of queued events.
func (q *TimeQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.events)
}

// Peek returns the earliest event without removing it.
func (q *TimeQueue) Peek() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.events[0]
}
