package scheduler_test

import (
	"testing"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/scheduler"
	"github.com/embervale/machina/test"
)

// counter is a Task that allocates a fixed period every time it is
// synchronized and counts how many times it has run.
type counter struct {
	path   paths.ComponentPath
	period uint64
	runs   int
	lastAt scheduler.Timestamp
}

func (c *counter) Path() paths.ComponentPath { return c.path }

func (c *counter) Synchronize(ctx *scheduler.SynchronizationContext) {
	c.runs++
	c.lastAt = ctx.Now()
	ctx.AllocatePeriod(c.period)
}

// forgetful never allocates a period, which the scheduler must treat as a
// programming error.
type forgetful struct {
	path paths.ComponentPath
}

func (f *forgetful) Path() paths.ComponentPath { return f.path }

func (f *forgetful) Synchronize(ctx *scheduler.SynchronizationContext) {}

func TestSchedulerRunsDueParticipant(t *testing.T) {
	s := scheduler.New(scheduler.NewPeriod(1, 1))

	c := &counter{path: paths.New("cpu"), period: 10}
	s.Register(component.Id(1), c)

	s.Run(scheduler.Timestamp(35))

	// due at 0, 10, 20, 30 -- four synchronizations by the time the
	// timeline reaches 35.
	test.ExpectEquality(t, c.runs, 4)
	test.ExpectEquality(t, s.Now(), scheduler.Timestamp(35))
}

func TestSchedulerTwoParticipantsInterleave(t *testing.T) {
	s := scheduler.New(scheduler.NewPeriod(1, 1))

	fast := &counter{path: paths.New("fast"), period: 3}
	slow := &counter{path: paths.New("slow"), period: 7}
	s.Register(component.Id(1), fast)
	s.Register(component.Id(2), slow)

	s.Run(scheduler.Timestamp(21))

	// fast is due at 0,3,6,...,21 (8 synchronizations); slow is due at
	// 0,7,14,21 (4 synchronizations).
	test.ExpectEquality(t, fast.runs, 8)
	test.ExpectEquality(t, slow.runs, 4)
}

func TestSchedulerFiresEvents(t *testing.T) {
	s := scheduler.New(scheduler.NewPeriod(1, 1))

	fired := false
	s.InsertEvent(scheduler.Event{
		At: scheduler.Timestamp(15),
		Fire: func() {
			fired = true
		},
	})

	s.Run(scheduler.Timestamp(20))
	test.ExpectEquality(t, fired, true)
}

func TestSchedulerPanicsOnMissingAllocation(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic when a participant never allocates a period")
		}
	}()

	s := scheduler.New(scheduler.NewPeriod(1, 1))
	s.Register(component.Id(1), &forgetful{path: paths.New("stuck")})
	s.Run(scheduler.Timestamp(10))
}

func TestSchedulerPreemptionStopsRunEarly(t *testing.T) {
	s := scheduler.New(scheduler.NewPeriod(1, 1))

	c := &counter{path: paths.New("cpu"), period: 1}
	s.Register(component.Id(1), c)

	preempted := false
	s.InsertEvent(scheduler.Event{
		At: scheduler.Timestamp(5),
		Fire: func() {
			preempted = true
			s.Preempt().Raise()
		},
	})

	s.Run(scheduler.Timestamp(1000))

	test.ExpectEquality(t, preempted, true)
	if s.Now() >= scheduler.Timestamp(1000) {
		t.Fatalf("expected Run to return before reaching its target once preempted")
	}
}
