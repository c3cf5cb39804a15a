// Package registry holds every component that makes up a built machine,
// indexed both by dense Id and by its path in the machine's hierarchy. It
// provides the two access patterns every component needs: direct lookup
// by Id for the hot path (memory dispatch, scheduler ticks), and lazy,
// thread-safe interaction for cold paths such as the debugger or save
// manager that may be called from any goroutine.
//
// Most components are "shared": any goroutine may call into them directly
// through Interact, which does not hold the registry's lock while the
// caller's function runs. A component may instead be registered
// as "pinned" to its own goroutine (typically because it wraps a
// non-thread-safe external resource, such as an audio device) — cross
// -thread touches of a pinned component are marshalled through a
// main-thread executor queue rather than called directly.
package registry

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/bradleyjkemp/memviz"

	"github.com/embervale/machina/assert"
	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/scheduler"
)

// Clock gives the registry a way to learn a machine's current timeline
// position, so Interact can catch an OnDemandComponent up to it before
// handing the component to the caller. scheduler.Scheduler satisfies
// this without any adapter.
type Clock interface {
	Now() scheduler.Timestamp
}

// OnDemandComponent is implemented by a component registered with
// component.ParticipationOnDemand: one the scheduler never drives
// directly, but which must still present a consistent view of its state
// as of "now" whenever some other component or caller interacts with it
// later than it was last synchronized. NeedsWork and Synchronize mirror
// the scheduler's own Task contract so the same Synchronize method can
// serve both call paths.
type OnDemandComponent interface {
	component.Component

	// NeedsWork reports whether the component still has catching up to
	// do to reach now.
	NeedsWork(now scheduler.Timestamp) bool

	// Synchronize advances the component by one unit of work toward
	// ctx.Now. As with a scheduler.Task, it must call
	// ctx.AllocatePeriod exactly once; a component that spins here
	// without allocating any period is a programming error and panics.
	Synchronize(ctx *scheduler.SynchronizationContext)
}

// entry is the registry's bookkeeping record for one component.
type entry struct {
	id        component.Id
	path      paths.ComponentPath
	component component.Component

	pinned   bool
	threadID uint64
}

// Registry is the machine-wide store of components.
type Registry struct {
	mu sync.RWMutex

	byID   map[component.Id]*entry
	byPath map[string]*entry
	nextID component.Id

	// mainThreadID is the goroutine ID the executor drains on. It is set
	// the first time Drain is called.
	mainThreadID  uint64
	mainThreadSet bool
	executorMu    sync.Mutex
	executorQueue []func()

	// clock, once set by a MachineBuilder tying this registry to a built
	// machine's scheduler, lets Interact catch on-demand components up
	// before handing them to a caller. A zero-value Registry with no
	// clock performs no catch-up, which is exactly right for tests that
	// exercise the registry on its own.
	clock Clock
}

// New is the preferred method of initialisation for the Registry type.
func New() *Registry {
	return &Registry{
		byID:   make(map[component.Id]*entry),
		byPath: make(map[string]*entry),
		nextID: component.InvalidId + 1,
	}
}

// Register adds c to the registry under path, returning the Id it has
// been assigned. Registering two components under the same path is an
// error. If pinned is true, every interaction with c from a goroutine
// other than the one that first calls Drain will be marshalled through
// the executor queue rather than called directly.
func (r *Registry) Register(path paths.ComponentPath, c component.Component, pinned bool) (component.Id, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[path.String()]; exists {
		return component.InvalidId, emuerrors.Errorf(emuerrors.InvalidConfig, fmt.Sprintf("component already registered at %q", path.String()))
	}

	id := r.nextID
	r.nextID++

	e := &entry{id: id, path: path, component: c, pinned: pinned}
	r.byID[id] = e
	r.byPath[path.String()] = e

	return id, nil
}

// Lookup resolves a path to the Id registered there.
func (r *Registry) Lookup(path paths.ComponentPath) (component.Id, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byPath[path.String()]
	if !ok {
		return component.InvalidId, false
	}
	return e.id, true
}

// Get returns the component registered under id.
func (r *Registry) Get(id component.Id) (component.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.component, true
}

// Path returns the path a component was registered under.
func (r *Registry) Path(id component.Id) (paths.ComponentPath, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return paths.ComponentPath{}, false
	}
	return e.path, true
}

// All returns every registered component's Id, in registration order.
func (r *Registry) All() []component.Id {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]component.Id, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	// Ids are assigned in increasing order by Register.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetClock ties the registry to a machine's timeline, enabling lazy
// catch-up of OnDemandComponents on every Interact. It is normally called
// once by MachineBuilder.Build; registries used standalone in tests may
// leave it unset.
func (r *Registry) SetClock(clock Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

// Interact calls fn with the component registered under id, marshalling
// the call through the main-thread executor if the component is pinned
// and the caller is not running on the thread the executor drains on.
// Before fn runs, if the component implements OnDemandComponent and a
// Clock has been set, Interact repeatedly synchronizes it until it no
// longer needs work to reach the clock's current timestamp — so a caller
// touching an on-demand component always observes state as of now,
// regardless of when the component was last driven.
// Interact reports emuerrors.ComponentNotFound if id is unknown.
func (r *Registry) Interact(id component.Id, fn func(component.Component)) error {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return emuerrors.Errorf(emuerrors.ComponentNotFound, id)
	}

	r.catchUp(e)

	if !e.pinned || r.onMainThread() {
		fn(e.component)
		return nil
	}

	done := make(chan struct{})
	r.enqueue(func() {
		fn(e.component)
		close(done)
	})
	<-done
	return nil
}

// catchUp drives e's OnDemandComponent.Synchronize forward until it
// reports it has no more work to reach the registry's clock, if one is
// set. A component that reports NeedsWork true on every call without its
// Synchronize ever allocating a period is a programming error, caught by
// the same panic scheduler.Scheduler itself would raise.
func (r *Registry) catchUp(e *entry) {
	r.mu.RLock()
	clock := r.clock
	r.mu.RUnlock()

	if clock == nil {
		return
	}

	odc, ok := e.component.(OnDemandComponent)
	if !ok {
		return
	}

	now := clock.Now()
	for odc.NeedsWork(now) {
		ctx := scheduler.NewContext(now)
		odc.Synchronize(ctx)
		if !ctx.Allocated() {
			panic(emuerrors.Errorf(emuerrors.NoAllocation, e.id))
		}
	}
}

// onMainThread reports whether the calling goroutine is the one the
// executor drains on. Before the executor has drained at least once,
// every goroutine is considered off the main thread, so pinned
// components are always marshalled until a real main loop is running.
func (r *Registry) onMainThread() bool {
	r.executorMu.Lock()
	defer r.executorMu.Unlock()
	return r.mainThreadSet && assert.GetGoRoutineID() == r.mainThreadID
}

// enqueue appends fn to the executor queue.
func (r *Registry) enqueue(fn func()) {
	r.executorMu.Lock()
	defer r.executorMu.Unlock()
	r.executorQueue = append(r.executorQueue, fn)
}

// Drain runs every function currently queued for the main-thread
// executor, in submission order. The first call to Drain fixes the
// identity of the main thread: subsequent Interact calls against pinned
// components from any other goroutine will be queued rather than run
// directly.
func (r *Registry) Drain() {
	r.executorMu.Lock()
	if !r.mainThreadSet {
		r.mainThreadID = assert.GetGoRoutineID()
		r.mainThreadSet = true
	}
	queue := r.executorQueue
	r.executorQueue = nil
	r.executorMu.Unlock()

	for _, fn := range queue {
		fn()
	}
}

// Reset calls Reset on every registered component.
func (r *Registry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.byID {
		e.component.Reset()
	}
}

// WriteGraph writes a Graphviz dot representation of the registry's
// internal structure to w, useful for visualising how a built machine's
// components relate to one another.
func (r *Registry) WriteGraph(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	memviz.Map(w, r)
}

// TypedHandle is a cloneable, type-checked reference to a registered
// component, for a caller that always wants the same concrete type and
// would rather pay for the downcast once, at handle construction, than
// on every subsequent interaction. It is deliberately a thin wrapper
// around Interact rather than a separate storage path: typed_handle and
// untyped interact observe exactly the same state.
type TypedHandle[C component.Component] struct {
	r  *Registry
	id component.Id
}

// TypedHandleFor resolves path and returns a TypedHandle for it. The
// downcast to C is checked once here rather than on every Interact call;
// a path registered under a different concrete type fails fast with an
// InvalidConfig error rather than panicking deep inside a later Interact.
func TypedHandleFor[C component.Component](r *Registry, path paths.ComponentPath) (TypedHandle[C], error) {
	id, ok := r.Lookup(path)
	if !ok {
		return TypedHandle[C]{}, emuerrors.Errorf(emuerrors.ComponentNotFound, path)
	}

	comp, ok := r.Get(id)
	if !ok {
		return TypedHandle[C]{}, emuerrors.Errorf(emuerrors.ComponentNotFound, path)
	}
	if _, ok := comp.(C); !ok {
		return TypedHandle[C]{}, emuerrors.Errorf(emuerrors.InvalidConfig, fmt.Sprintf("%s: not the requested type", path))
	}

	return TypedHandle[C]{r: r, id: id}, nil
}

// Id returns the handle's underlying component Id.
func (h TypedHandle[C]) Id() component.Id {
	return h.id
}

// Interact calls fn with the handle's component, observing the same
// lazy-synchronization and thread-affinity behaviour as Registry.Interact.
// The cast to C is asserted, not checked again: TypedHandleFor already
// verified it at construction, so a mismatch here can only mean the
// registry's component was replaced after the handle was taken, which is
// a programming error worth panicking on rather than silently ignoring.
func (h TypedHandle[C]) Interact(fn func(c C)) error {
	return h.r.Interact(h.id, func(comp component.Component) {
		fn(comp.(C))
	})
}
