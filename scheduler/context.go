package scheduler

import "sync/atomic"

// Timestamp is a point on a Scheduler's timeline, expressed in master
// clock ticks.
type Timestamp uint64

// SynchronizationContext is passed to a Task's Synchronize method. A
// well-behaved task inspects Now, does whatever work is due, and calls
// AllocatePeriod exactly once before returning to tell the scheduler how
// long to wait before synchronizing it again. A task that returns without
// calling AllocatePeriod has left the scheduler with no way to know when
// it next needs attention; the scheduler treats this as a programming
// error and panics rather than silently stalling the task forever.
type SynchronizationContext struct {
	now       Timestamp
	allocated bool
	nextDue   Timestamp
}

// NewContext builds a SynchronizationContext for now, for callers outside
// the scheduler package that need to drive a single task's Synchronize
// directly rather than through a Scheduler's own timeline — the
// registry's on-demand catch-up of a component.ParticipationOnDemand
// component, for instance.
func NewContext(now Timestamp) *SynchronizationContext {
	return &SynchronizationContext{now: now}
}

// Now returns the current point on the timeline.
func (ctx *SynchronizationContext) Now() Timestamp {
	return ctx.now
}

// Allocated reports whether AllocatePeriod was called during this
// context's Synchronize invocation.
func (ctx *SynchronizationContext) Allocated() bool {
	return ctx.allocated
}

// NextDue returns the timestamp AllocatePeriod advanced the task to. Its
// value is meaningless unless Allocated reports true.
func (ctx *SynchronizationContext) NextDue() Timestamp {
	return ctx.nextDue
}

// AllocatePeriod tells the scheduler to synchronize this task again after
// ticks master clock ticks have elapsed. Calling it more than once in the
// same Synchronize panics, since it would leave the task's next due time
// ambiguous.
func (ctx *SynchronizationContext) AllocatePeriod(ticks uint64) {
	if ctx.allocated {
		panic("scheduler: AllocatePeriod called more than once during a single synchronize")
	}
	ctx.allocated = true
	ctx.nextDue = ctx.now + Timestamp(ticks)
}

// PreemptionSignal lets any goroutine ask a running Scheduler to return
// from Run at the next opportunity, without waiting for its target
// timestamp to be reached. Typical uses are a debugger breakpoint or a
// user-requested pause.
type PreemptionSignal struct {
	raised int32
}

// Raise requests preemption. It is safe to call from any goroutine,
// including while a Scheduler is mid-Run on another.
func (p *PreemptionSignal) Raise() {
	atomic.StoreInt32(&p.raised, 1)
}

// take reports whether preemption has been requested, and clears the
// request.
func (p *PreemptionSignal) take() bool {
	return atomic.SwapInt32(&p.raised, 0) == 1
}
