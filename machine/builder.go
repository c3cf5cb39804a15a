// Package machine assembles registered components, memory maps, scheduler
// tasks and save/snapshot wiring into a single runnable Machine, in one
// ordered pass.
package machine

import (
	"fmt"
	"io"
	"sync"

	"github.com/embervale/machina/audiosink"
	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/environment"
	"github.com/embervale/machina/logger"
	"github.com/embervale/machina/memory"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/registry"
	"github.com/embervale/machina/romreq"
	"github.com/embervale/machina/save"
	"github.com/embervale/machina/scheduler"
)

// ConfigureFunc builds one component, given a handle for wiring its
// memory maps, scheduler participation and resources. It returns the
// constructed component, which the builder then registers under the path
// its ComponentBuilder was created with.
type ConfigureFunc func(cb *ComponentBuilder) (component.Component, error)

// Display is a named video output resource a component exposes; it
// carries no behaviour of its own. A GUI frontend (out of scope for this
// framework) is expected to read frames via component.FramebufferAccessor,
// looked up on the built Machine by Resource().
type Display struct {
	Path paths.ComponentPath
	Name string
}

// Resource returns the ResourcePath a frontend uses to look this display
// up on the built Machine.
func (d Display) Resource() paths.ResourcePath {
	return paths.NewResourcePath(d.Path, d.Name)
}

// Gamepad is a named input resource a component exposes; frontends feed
// input events into whatever the component itself requires.
type Gamepad struct {
	Path paths.ComponentPath
	Name string
	Impl interface{}
}

// Resource returns the ResourcePath a frontend uses to look this gamepad
// up on the built Machine.
func (g Gamepad) Resource() paths.ResourcePath {
	return paths.NewResourcePath(g.Path, g.Name)
}

// AudioOutput is a named audio resource exposed by a component that
// implements component.AudioSampler; audiosink.RingBuffer and
// audiosink.Recorder consume it.
type AudioOutput struct {
	Path paths.ComponentPath
	Name string
}

// Resource returns the ResourcePath a frontend uses to look this audio
// output up on the built Machine.
func (a AudioOutput) Resource() paths.ResourcePath {
	return paths.NewResourcePath(a.Path, a.Name)
}

type mappingKind int

const (
	mapComponent mappingKind = iota
	mapMirror
)

type mappingRequest struct {
	kind          mappingKind
	spaceName     string
	start, end    uint32
	componentBase uint32
	readable      bool
	writable      bool
	mirrorOf      uint32
}

type taskRequest struct {
	id       component.Id
	period   scheduler.Period
	fn       func(ctx *scheduler.SynchronizationContext)
	onDemand bool
}

type eventRequest struct {
	at   scheduler.Timestamp
	fire func()
}

type repeatingEventRequest struct {
	first  scheduler.Timestamp
	period scheduler.Period
	fire   func()
}

type romRequest struct {
	id  romreq.Id
	req romreq.Requirement
}

type recorderRequest struct {
	resource paths.ResourcePath
	w        io.WriteSeeker
}

// ComponentBuilder is handed to a component's ConfigureFunc, giving it
// access to its own path and every way it can wire itself into the
// machine being built. Every call just queues a request; nothing takes
// effect until MachineBuilder.Build runs its ordered commit pass.
type ComponentBuilder struct {
	mb   *MachineBuilder
	path paths.ComponentPath

	pinned        bool
	participation component.Participation

	mappings        []mappingRequest
	tasks           []taskRequest
	events          []eventRequest
	repeatingEvents []repeatingEventRequest
	displays        []Display
	gamepads        []Gamepad
	audioOutputs    []AudioOutput
	roms            []romRequest
	lazyInit        func(m *Machine) error
}

// Path returns the path the component being built will be registered
// under.
func (cb *ComponentBuilder) Path() paths.ComponentPath {
	return cb.path
}

// Pin marks the component as pinned to whichever goroutine first drains
// the registry's executor, rather than freely callable from any thread.
func (cb *ComponentBuilder) Pin() {
	cb.pinned = true
}

// MemoryMap maps the component into space across [start, end], readable
// and writable, with componentBase added to every offset before it
// reaches the component's ReadMemory/WriteMemory.
func (cb *ComponentBuilder) MemoryMap(space string, start, end, componentBase uint32) {
	cb.mappings = append(cb.mappings, mappingRequest{
		kind: mapComponent, spaceName: space, start: start, end: end,
		componentBase: componentBase, readable: true, writable: true,
	})
}

// MemoryMapRead is MemoryMap restricted to read access.
func (cb *ComponentBuilder) MemoryMapRead(space string, start, end, componentBase uint32) {
	cb.mappings = append(cb.mappings, mappingRequest{
		kind: mapComponent, spaceName: space, start: start, end: end,
		componentBase: componentBase, readable: true,
	})
}

// MemoryMapWrite is MemoryMap restricted to write access.
func (cb *ComponentBuilder) MemoryMapWrite(space string, start, end, componentBase uint32) {
	cb.mappings = append(cb.mappings, mappingRequest{
		kind: mapComponent, spaceName: space, start: start, end: end,
		componentBase: componentBase, writable: true,
	})
}

// MemoryMapMirror redirects [start, end] in space to the range beginning
// at mirrorOf in the same space, for both read and write access.
func (cb *ComponentBuilder) MemoryMapMirror(space string, start, end, mirrorOf uint32) {
	cb.mappings = append(cb.mappings, mappingRequest{
		kind: mapMirror, spaceName: space, start: start, end: end, mirrorOf: mirrorOf,
	})
}

// InsertTask registers fn to be called every time the scheduler
// synchronizes this component, once Build has established the timeline.
// period is this task's own natural rate; the scheduler derives its
// master tick from every registered task's period.
func (cb *ComponentBuilder) InsertTask(period scheduler.Period, fn func(ctx *scheduler.SynchronizationContext)) {
	cb.tasks = append(cb.tasks, taskRequest{period: period, fn: fn})
	cb.participation = component.ParticipationSchedulerDriven
}

// InsertEvent schedules fn to fire once the machine's timeline reaches
// at.
func (cb *ComponentBuilder) InsertEvent(at scheduler.Timestamp, fn func()) {
	cb.events = append(cb.events, eventRequest{at: at, fire: fn})
}

// InsertRepeatingEvent schedules fn to fire at first, then again every
// period thereafter, for as long as the machine runs. Each firing
// re-inserts the next occurrence, so the interval is exact even across
// long runs.
func (cb *ComponentBuilder) InsertRepeatingEvent(first scheduler.Timestamp, period scheduler.Period, fn func()) {
	cb.repeatingEvents = append(cb.repeatingEvents, repeatingEventRequest{first: first, period: period, fire: fn})
}

// InsertDisplay declares a named video output resource belonging to this
// component.
func (cb *ComponentBuilder) InsertDisplay(name string) Display {
	d := Display{Path: cb.path, Name: name}
	cb.displays = append(cb.displays, d)
	return d
}

// InsertGamepad declares a named input resource belonging to this
// component, backed by impl (whatever shape the component itself expects
// input events in).
func (cb *ComponentBuilder) InsertGamepad(name string, impl interface{}) Gamepad {
	g := Gamepad{Path: cb.path, Name: name, Impl: impl}
	cb.gamepads = append(cb.gamepads, g)
	return g
}

// InsertAudioOutput declares a named audio output resource belonging to
// this component.
func (cb *ComponentBuilder) InsertAudioOutput(name string) AudioOutput {
	a := AudioOutput{Path: cb.path, Name: name}
	cb.audioOutputs = append(cb.audioOutputs, a)
	return a
}

// RequestRom declares that this component needs the ROM or firmware image
// identified by id, at the given requirement level. MachineBuilder.Build
// resolves each request against whatever Source the builder was given via
// ProvideRom, failing the build if a Required request cannot be resolved.
// A resolved Source is retrievable afterward via Machine.Rom.
func (cb *ComponentBuilder) RequestRom(id romreq.Id, req romreq.Requirement) {
	cb.roms = append(cb.roms, romRequest{id: id, req: req})
}

// InsertChildComponent builds a child component whose path is this
// component's path with childName pushed onto it, and registers it
// immediately.
func (cb *ComponentBuilder) InsertChildComponent(childName string, configure ConfigureFunc) (component.Id, error) {
	return cb.mb.insertAt(cb.path.Push(childName), configure)
}

// SetLazyComponentInitializer registers fn to run once, after every
// component in the machine has been constructed and registered, but
// before Build returns. fn receives the built Machine so it may look up
// siblings by path.
func (cb *ComponentBuilder) SetLazyComponentInitializer(fn func(m *Machine) error) {
	cb.lazyInit = fn
}

// SetSchedulerParticipation overrides this component's participation
// mode. InsertTask already implies ParticipationSchedulerDriven; call
// this explicitly for ParticipationOnDemand, or to opt back out.
func (cb *ComponentBuilder) SetSchedulerParticipation(p component.Participation) {
	cb.participation = p
}

// MachineBuilder assembles a Machine in one ordered pass: components are
// registered as InsertComponent is called, but nothing they request
// (memory maps, scheduler tasks, events) takes effect until Build commits
// everything in a single batch.
type MachineBuilder struct {
	mu sync.Mutex

	reg *registry.Registry

	spaceOrder []string
	spaces     map[string]*memory.AddressSpace
	nextSpace  component.AddressSpaceId

	pending map[component.Id]*ComponentBuilder
	order   []component.Id

	romSources map[romreq.Id]romreq.Source
	recorders  []recorderRequest

	env *environment.Environment
}

// NewMachineBuilder is the preferred method of initialisation for the
// MachineBuilder type.
func NewMachineBuilder(env *environment.Environment) *MachineBuilder {
	return &MachineBuilder{
		reg:        registry.New(),
		spaces:     make(map[string]*memory.AddressSpace),
		pending:    make(map[component.Id]*ComponentBuilder),
		romSources: make(map[romreq.Id]romreq.Source),
		env:        env,
	}
}

// ProvideRom registers src as the Source that resolves any component's
// RequestRom(id, ...) declaration, for Build to resolve during its commit
// pass.
func (mb *MachineBuilder) ProvideRom(id romreq.Id, src romreq.Source) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.romSources[id] = src
}

// AttachRecorder attaches a WAV recorder to the audio output named by
// resource, capturing everything it generates to w for offline inspection.
// Multiple recorders may be attached to the same or different outputs; each
// is driven by Machine.PumpRecorders and finalized by Machine.
// CloseRecorders.
func (mb *MachineBuilder) AttachRecorder(resource paths.ResourcePath, w io.WriteSeeker) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.recorders = append(mb.recorders, recorderRequest{resource: resource, w: w})
}

// AddressSpace returns the address space registered under name, creating
// one of the given width if it doesn't exist yet.
func (mb *MachineBuilder) AddressSpace(name string, width uint) *memory.AddressSpace {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if as, ok := mb.spaces[name]; ok {
		return as
	}

	mb.nextSpace++
	as := memory.NewAddressSpace(mb.nextSpace, name, width)
	mb.spaces[name] = as
	mb.spaceOrder = append(mb.spaceOrder, name)
	return as
}

// InsertComponent constructs and registers a top-level component under
// name.
func (mb *MachineBuilder) InsertComponent(name string, configure ConfigureFunc) (component.Id, error) {
	return mb.insertAt(paths.New(name), configure)
}

func (mb *MachineBuilder) insertAt(path paths.ComponentPath, configure ConfigureFunc) (component.Id, error) {
	cb := &ComponentBuilder{mb: mb, path: path}

	comp, err := configure(cb)
	if err != nil {
		return component.InvalidId, emuerrors.Errorf(emuerrors.InvalidConfig, err)
	}

	id, err := mb.reg.Register(path, comp, cb.pinned)
	if err != nil {
		return component.InvalidId, err
	}

	mb.mu.Lock()
	mb.pending[id] = cb
	mb.order = append(mb.order, id)
	mb.mu.Unlock()

	return id, nil
}

// Build commits every pending memory map, constructs the scheduler
// timeline from every registered task, wires pending events, and runs
// every lazy initializer (both ComponentBuilder's and any component that
// itself implements component.Initializer), in that order.
func (mb *MachineBuilder) Build() (*Machine, error) {
	for _, id := range mb.order {
		cb := mb.pending[id]
		if err := mb.commitMappings(id, cb); err != nil {
			return nil, err
		}
	}

	var periods []scheduler.Period
	for _, id := range mb.order {
		for _, t := range mb.pending[id].tasks {
			periods = append(periods, t.period)
		}
	}

	master := scheduler.NewPeriod(1, 1)
	if len(periods) > 0 {
		master = scheduler.MasterPeriod(periods...)
	}
	sched := scheduler.New(master)
	mb.reg.SetClock(sched)

	m := &Machine{
		env:          mb.env,
		reg:          mb.reg,
		mem:          memory.NewMemoryAccessTable(mb.reg),
		sched:        sched,
		saves:        save.NewSaveManager(mb.reg),
		snapshots:    save.NewSnapshotManager(mb.reg),
		spaces:       mb.spaces,
		displays:     make(map[string]Display),
		gamepads:     make(map[string]Gamepad),
		audioOutputs: make(map[string]AudioOutput),
		roms:         make(map[string]map[romreq.Id]romreq.Source),
	}
	for _, name := range mb.spaceOrder {
		m.mem.AddAddressSpace(mb.spaces[name])
	}

	for _, id := range mb.order {
		cb := mb.pending[id]

		for _, t := range cb.tasks {
			sched.Register(id, &taskAdapter{path: cb.path, fn: t.fn})
		}
		for _, e := range cb.events {
			sched.InsertEvent(scheduler.Event{At: e.at, Fire: e.fire})
		}
		for _, re := range cb.repeatingEvents {
			mb.insertRepeating(sched, master, re)
		}
		for _, d := range cb.displays {
			m.displays[d.Resource().String()] = d
		}
		for _, g := range cb.gamepads {
			m.gamepads[g.Resource().String()] = g
		}
		for _, a := range cb.audioOutputs {
			m.audioOutputs[a.Resource().String()] = a
		}
	}

	if err := mb.resolveRoms(m); err != nil {
		return nil, err
	}
	if err := mb.attachRecorders(m); err != nil {
		return nil, err
	}

	for _, id := range mb.order {
		cb := mb.pending[id]
		if cb.lazyInit != nil {
			if err := cb.lazyInit(m); err != nil {
				return nil, emuerrors.Errorf(emuerrors.InvalidConfig, err)
			}
		}

		comp, _ := mb.reg.Get(id)
		if initer, ok := comp.(component.Initializer); ok {
			if err := initer.Initialize(); err != nil {
				return nil, emuerrors.Errorf(emuerrors.InvalidConfig, err)
			}
		}
	}

	logger.Logf(logger.Allow, "machine", "built machine with %d component(s)", len(mb.order))
	return m, nil
}

// insertRepeating wires a self-re-inserting event into sched so that a
// component's InsertRepeatingEvent keeps firing for as long as the
// timeline runs, without the caller needing to know how the scheduler
// represents recurring work.
func (mb *MachineBuilder) insertRepeating(sched *scheduler.Scheduler, master scheduler.Period, re repeatingEventRequest) {
	ticks := scheduler.Ticks(master, re.period)
	if ticks == 0 {
		ticks = 1
	}

	var fire func()
	fire = func() {
		re.fire()
		sched.InsertEvent(scheduler.Event{At: sched.Now() + scheduler.Timestamp(ticks), Fire: fire})
	}
	sched.InsertEvent(scheduler.Event{At: re.first, Fire: fire})
}

func (mb *MachineBuilder) commitMappings(id component.Id, cb *ComponentBuilder) error {
	for _, req := range cb.mappings {
		as := mb.AddressSpace(req.spaceName, 32)

		var err error
		switch req.kind {
		case mapComponent:
			err = as.MapComponent(id, req.start, req.end, req.componentBase, req.readable, req.writable)
		case mapMirror:
			err = as.MapMirror(req.start, req.end, req.mirrorOf)
		}
		if err != nil {
			return emuerrors.Errorf(emuerrors.InvalidConfig, fmt.Sprintf("%s: %v", cb.path, err))
		}
	}
	return nil
}

// resolveRoms opens every ROM request's backing Source and stores it in m,
// keyed by the requesting component's path. A Required request that cannot
// be opened fails the build; an Optional or Sometimes request that cannot
// be resolved is simply left absent for the component to notice via
// Machine.Rom's boolean return.
func (mb *MachineBuilder) resolveRoms(m *Machine) error {
	for _, id := range mb.order {
		cb := mb.pending[id]
		if len(cb.roms) == 0 {
			continue
		}

		resolved := make(map[romreq.Id]romreq.Source, len(cb.roms))
		for _, rr := range cb.roms {
			src, ok := mb.romSources[rr.id]
			if !ok {
				if rr.req == romreq.Required {
					return emuerrors.Errorf(emuerrors.InvalidConfig, fmt.Sprintf("%s: no rom source provided for %q", cb.path, rr.id))
				}
				continue
			}

			if err := src.Open(); err != nil {
				if rr.req == romreq.Required {
					return emuerrors.Errorf(emuerrors.InvalidConfig, fmt.Sprintf("%s: %v", cb.path, err))
				}
				continue
			}

			resolved[rr.id] = src
		}

		if len(resolved) > 0 {
			m.roms[cb.path.String()] = resolved
		}
	}
	return nil
}

// attachRecorders binds every queued AttachRecorder request to the live
// audiosink.RingBuffer the resource's owning component.AudioSampler
// exposes, so Machine.PumpRecorders has something to drain into each
// attached Recorder.
func (mb *MachineBuilder) attachRecorders(m *Machine) error {
	for _, rr := range mb.recorders {
		id, ok := mb.reg.Lookup(rr.resource.Owner())
		if !ok {
			return emuerrors.Errorf(emuerrors.ComponentNotFound, rr.resource.Owner())
		}

		var ring *audiosink.RingBuffer
		err := mb.reg.Interact(id, func(c component.Component) {
			as, ok := c.(component.AudioSampler)
			if !ok {
				return
			}
			ring = as.Samples(rr.resource.Name())
		})
		if err != nil {
			return err
		}
		if ring == nil {
			return emuerrors.Errorf(emuerrors.ComponentNotFound, rr.resource)
		}

		m.recorders = append(m.recorders, recorderBinding{
			ring: ring,
			rec:  audiosink.NewRecorder(rr.w),
		})
	}
	return nil
}

// taskAdapter adapts a ComponentBuilder.InsertTask callback to the
// scheduler.Task interface.
type taskAdapter struct {
	path paths.ComponentPath
	fn   func(ctx *scheduler.SynchronizationContext)
}

func (t *taskAdapter) Path() paths.ComponentPath { return t.path }
func (t *taskAdapter) Synchronize(ctx *scheduler.SynchronizationContext) {
	t.fn(ctx)
}
