package machine

import (
	"io"

	"github.com/embervale/machina/audiosink"
	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/environment"
	"github.com/embervale/machina/memory"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/registry"
	"github.com/embervale/machina/romreq"
	"github.com/embervale/machina/save"
	"github.com/embervale/machina/scheduler"
)

// recorderBinding pairs a live audio output's sample ring with the WAV
// recorder capturing it.
type recorderBinding struct {
	ring *audiosink.RingBuffer
	rec  *audiosink.Recorder
}

// Machine is the assembled result of a MachineBuilder's Build pass: a
// registry of components, their memory maps, a scheduler timeline, and
// save/snapshot managers, ready to run.
type Machine struct {
	env *environment.Environment

	reg   *registry.Registry
	mem   *memory.MemoryAccessTable
	sched *scheduler.Scheduler

	saves     *save.SaveManager
	snapshots *save.SnapshotManager

	spaces map[string]*memory.AddressSpace

	displays     map[string]Display
	gamepads     map[string]Gamepad
	audioOutputs map[string]AudioOutput

	roms      map[string]map[romreq.Id]romreq.Source
	recorders []recorderBinding
}

// Environment returns the machine's environment, giving callers access to
// its random source, preferences and notification sink.
func (m *Machine) Environment() *environment.Environment {
	return m.env
}

// Registry returns the machine's component registry.
func (m *Machine) Registry() *registry.Registry {
	return m.reg
}

// Memory returns the machine's address-space access table.
func (m *Machine) Memory() *memory.MemoryAccessTable {
	return m.mem
}

// AddressSpace returns the address space registered under name during
// building.
func (m *Machine) AddressSpace(name string) (*memory.AddressSpace, bool) {
	as, ok := m.spaces[name]
	return as, ok
}

// Scheduler returns the machine's scheduler.
func (m *Machine) Scheduler() *scheduler.Scheduler {
	return m.sched
}

// Run advances the machine's timeline up to target, synchronizing every
// scheduler-driven component and firing every due event along the way.
func (m *Machine) Run(target scheduler.Timestamp) {
	m.sched.Run(target)
}

// Reset restores every component to its power-on state. Unless the
// environment has been normalised, components that seed their own state
// from environment.Random will start from indeterminate values, the way
// real silicon does.
func (m *Machine) Reset() {
	m.reg.Reset()
}

// Normalise puts the machine's environment into a deterministic mode,
// suitable for regression tests that need a repeatable starting state
// rather than hardware-realistic nondeterminism.
func (m *Machine) Normalise() {
	m.env.Normalise()
}

// Save writes every component.Saveable component's persistent state to
// filename.
func (m *Machine) Save(filename string) ([]save.ComponentError, error) {
	return m.saves.Save(filename)
}

// Load restores every component.Saveable component's persistent state
// from filename.
func (m *Machine) Load(filename string) ([]save.ComponentError, error) {
	return m.saves.Load(filename)
}

// Snapshot captures every component.Snapshotter component's runtime state
// into slot.
func (m *Machine) Snapshot(slot save.Slot) []save.ComponentError {
	return m.snapshots.Capture(slot)
}

// Restore applies a previously captured snapshot from slot.
func (m *Machine) Restore(slot save.Slot) ([]save.ComponentError, error) {
	return m.snapshots.Restore(slot)
}

// WriteGraph writes a Graphviz dot representation of the machine's
// component registry to w, for diagnostics.
func (m *Machine) WriteGraph(w io.Writer) {
	m.reg.WriteGraph(w)
}

// Lookup resolves a registered component by Id, for callers (typically a
// lazy initializer) that need direct access rather than going through
// Registry().Interact.
func (m *Machine) Lookup(id component.Id) (component.Component, bool) {
	return m.reg.Get(id)
}

// Displays returns every video output resource registered during
// building, keyed by its ResourcePath.
func (m *Machine) Displays() map[string]Display {
	return m.displays
}

// Gamepads returns every input resource registered during building,
// keyed by its ResourcePath.
func (m *Machine) Gamepads() map[string]Gamepad {
	return m.gamepads
}

// AudioOutputs returns every audio output resource registered during
// building, keyed by its ResourcePath.
func (m *Machine) AudioOutputs() map[string]AudioOutput {
	return m.audioOutputs
}

// AccessFramebuffer resolves rp to its owning component, requires it to
// implement component.FramebufferAccessor, and hands its current contents
// to fn. It reports emuerrors.ComponentNotFound if rp does not name a
// registered display.
func (m *Machine) AccessFramebuffer(rp paths.ResourcePath, fn func(pixels []byte, width, height int)) error {
	d, ok := m.displays[rp.String()]
	if !ok {
		return emuerrors.Errorf(emuerrors.ComponentNotFound, rp)
	}

	id, ok := m.reg.Lookup(d.Path)
	if !ok {
		return emuerrors.Errorf(emuerrors.ComponentNotFound, d.Path)
	}

	return m.reg.Interact(id, func(c component.Component) {
		fa, ok := c.(component.FramebufferAccessor)
		if !ok {
			return
		}
		pixels, width, height, err := fa.AccessFramebuffer()
		if err != nil {
			return
		}
		fn(pixels, width, height)
	})
}

// DrainSamples resolves rp to its owning component, requires it to
// implement component.AudioSampler, and returns every sample it has
// generated for that audio output since the last drain.
func (m *Machine) DrainSamples(rp paths.ResourcePath) ([]float64, error) {
	a, ok := m.audioOutputs[rp.String()]
	if !ok {
		return nil, emuerrors.Errorf(emuerrors.ComponentNotFound, rp)
	}

	id, ok := m.reg.Lookup(a.Path)
	if !ok {
		return nil, emuerrors.Errorf(emuerrors.ComponentNotFound, a.Path)
	}

	var samples []float64
	err := m.reg.Interact(id, func(c component.Component) {
		as, ok := c.(component.AudioSampler)
		if !ok {
			return
		}
		ring := as.Samples(rp.Name())
		if ring == nil {
			return
		}
		samples = ring.Drain()
	})
	return samples, err
}

// Gamepad resolves rp to its owning component's declared gamepad
// implementation, for a frontend to feed input events into.
func (m *Machine) Gamepad(rp paths.ResourcePath) (interface{}, bool) {
	g, ok := m.gamepads[rp.String()]
	if !ok {
		return nil, false
	}
	return g.Impl, true
}

// Rom returns the resolved Source backing componentPath's RequestRom(id,
// ...) declaration, and false if no such request was made or it could not
// be resolved (and was not Required).
func (m *Machine) Rom(componentPath paths.ComponentPath, id romreq.Id) (romreq.Source, bool) {
	byId, ok := m.roms[componentPath.String()]
	if !ok {
		return romreq.Source{}, false
	}
	src, ok := byId[id]
	return src, ok
}

// PumpRecorders drains every audio output an AttachRecorder call bound to a
// Recorder and writes the samples to its WAV file. A frontend (or a test)
// calls this after each run of synchronized audio generation, the same
// cadence DrainSamples is normally called at.
func (m *Machine) PumpRecorders() error {
	for _, rb := range m.recorders {
		samples := rb.ring.Drain()
		if len(samples) == 0 {
			continue
		}
		if err := rb.rec.WriteFrame(samples); err != nil {
			return err
		}
	}
	return nil
}

// CloseRecorders finalizes every attached Recorder's WAV header. Call this
// once, after the machine has finished running.
func (m *Machine) CloseRecorders() error {
	for _, rb := range m.recorders {
		if err := rb.rec.Close(); err != nil {
			return err
		}
	}
	return nil
}
