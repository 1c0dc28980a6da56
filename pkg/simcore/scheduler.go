package simcore

import (
	"container/heap"
	"errors"
	"fmt"
)

// ErrInvalidTime is returned by Schedule when an event's triggered
// time is strictly before the current virtual clock. This is always a
// plug-in bug: a replica or attacker tried to schedule something in
// the past.
var ErrInvalidTime = errors.New("simcore: event scheduled before current clock")

// Dispatcher receives an event popped off the queue at its trigger
// time and reacts to it. The scheduler never inspects event payloads
// itself; dispatch is entirely the caller's business logic.
type Dispatcher func(*Event)

// Scheduler owns the single min-heap of pending events and the
// virtual clock, exactly as spec §4.1 describes: single-threaded,
// deterministic given (PRNG seed, initial configuration).
type Scheduler struct {
	queue       eventHeap
	clock       float64
	nextSeq     int
	dispatched  int
	maxDispatch int // 0 = unbounded
}

// NewScheduler builds an empty scheduler. maxDispatch bounds the
// number of events RunUntil will dispatch before giving up (the
// event-count ceiling of spec §4.6); 0 means unbounded.
func NewScheduler(maxDispatch int) *Scheduler {
	s := &Scheduler{maxDispatch: maxDispatch}
	heap.Init(&s.queue)
	return s
}

// CurrentClock reads the virtual clock.
func (s *Scheduler) CurrentClock() float64 {
	return s.clock
}

// DispatchedCount reports how many events have been dispatched since
// the last Reset, for the run controller's event-count ceiling.
func (s *Scheduler) DispatchedCount() int {
	return s.dispatched
}

// Pending reports how many events are currently queued.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Schedule inserts an event into the heap. The event's Time must be
// at or after the current clock; scheduling into the past is a fatal
// plug-in bug (spec §7 InvalidTime).
func (s *Scheduler) Schedule(e *Event) error {
	if e.Time < s.clock {
		return fmt.Errorf("%w: event at %.6f, clock at %.6f", ErrInvalidTime, e.Time, s.clock)
	}
	e.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, e)
	return nil
}

// RunUntil repeatedly pops the minimum event, advances the clock to
// its trigger time, and dispatches it, until predicate(s) holds, the
// queue empties, or the dispatch ceiling (if any) is hit. It returns
// true if the predicate is what stopped the loop (as opposed to the
// queue emptying or the ceiling firing).
func (s *Scheduler) RunUntil(dispatch Dispatcher, predicate func(*Scheduler) bool) bool {
	for len(s.queue) > 0 {
		if predicate(s) {
			return true
		}
		if s.maxDispatch > 0 && s.dispatched >= s.maxDispatch {
			return false
		}
		e := heap.Pop(&s.queue).(*Event)
		s.clock = e.Time
		s.dispatched++
		dispatch(e)
	}
	return predicate(s)
}

// Reset drops all pending events and zeroes the clock and counters,
// ready for the next independent run.
func (s *Scheduler) Reset() {
	s.queue = s.queue[:0]
	heap.Init(&s.queue)
	s.clock = 0
	s.nextSeq = 0
	s.dispatched = 0
}
