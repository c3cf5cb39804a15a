package scheduler

import (
	"sort"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/paths"
)

// Task is implemented by a component that wants to be driven forward by
// the scheduler's timeline.
type Task interface {
	Path() paths.ComponentPath

	// Synchronize brings the task up to date with ctx.Now and must call
	// ctx.AllocatePeriod exactly once before returning.
	Synchronize(ctx *SynchronizationContext)
}

// Event is a one-shot callback due to fire once the timeline reaches At.
type Event struct {
	At   Timestamp
	Fire func()
}

// participant is a registered Task together with its scheduling
// bookkeeping.
type participant struct {
	id   component.Id
	task Task
	due  Timestamp
}

// Scheduler drives every SchedulerDriven component's Task forward in
// discrete-event fashion: rather than ticking one master clock cycle at a
// time, it jumps directly to the timestamp of whichever participant or
// event is next due, which keeps long idle stretches (a component that
// only needs attention every few thousand cycles) cheap.
type Scheduler struct {
	master Period
	now    Timestamp

	participants []*participant
	events       []Event

	preempt PreemptionSignal
}

// New is the preferred method of initialisation for the Scheduler type.
func New(master Period) *Scheduler {
	return &Scheduler{master: master}
}

// Now returns the scheduler's current timeline position.
func (s *Scheduler) Now() Timestamp {
	return s.now
}

// Preempt returns the scheduler's preemption signal, which any goroutine
// may Raise to interrupt a running Run call early.
func (s *Scheduler) Preempt() *PreemptionSignal {
	return &s.preempt
}

// Register adds task to the timeline, due to be first synchronized at the
// scheduler's current position.
func (s *Scheduler) Register(id component.Id, task Task) {
	s.participants = append(s.participants, &participant{id: id, task: task, due: s.now})
}

// InsertEvent schedules e to fire once the timeline reaches e.At.
func (s *Scheduler) InsertEvent(e Event) {
	s.events = append(s.events, e)
}

// Run advances the timeline up to and including target, synchronizing
// every participant and firing every event as it comes due, in
// timestamp order. It returns early, before reaching target, if the
// scheduler's PreemptionSignal is raised.
func (s *Scheduler) Run(target Timestamp) {
	for {
		next, ok := s.nextDue(target)
		if !ok {
			s.now = target
			return
		}

		s.now = next
		s.fireDueEvents()
		s.synchronizeDueParticipants()

		if s.preempt.take() {
			return
		}
	}
}

// nextDue returns the earliest timestamp, no later than target, at which
// an event or participant requires attention. ok is false if nothing is
// due before target, meaning the timeline can jump straight to target.
func (s *Scheduler) nextDue(target Timestamp) (Timestamp, bool) {
	next := target
	found := false

	for _, e := range s.events {
		if e.At <= next {
			next = e.At
			found = true
		}
	}
	for _, p := range s.participants {
		if p.due <= next {
			next = p.due
			found = true
		}
	}

	if !found || next > target {
		return 0, false
	}
	return next, true
}

func (s *Scheduler) fireDueEvents() {
	// an event inserted by a firing event lands in the fresh s.events and
	// is kept, after the events that were already pending.
	pending := s.events
	s.events = nil
	remaining := pending[:0]
	for _, e := range pending {
		if e.At <= s.now {
			e.Fire()
			continue
		}
		remaining = append(remaining, e)
	}
	s.events = append(remaining, s.events...)
}

func (s *Scheduler) synchronizeDueParticipants() {
	due := make([]*participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.due <= s.now {
			due = append(due, p)
		}
	}

	// deterministic ordering: by registration order is already the
	// iteration order of s.participants, but sort by id to make the
	// contract explicit and independent of slice growth history.
	sort.SliceStable(due, func(i, j int) bool { return due[i].id < due[j].id })

	for _, p := range due {
		ctx := &SynchronizationContext{now: s.now}
		p.task.Synchronize(ctx)
		if !ctx.allocated {
			panic(emuerrors.Errorf(emuerrors.NoAllocation, p.id))
		}
		p.due = ctx.nextDue
	}
}
