// Package component defines the trait interfaces every emulated chip,
// peripheral or subsystem implements to participate in a machine: its
// identity and reset behaviour are mandatory, while memory access, save
// state, snapshotting, framebuffer and audio output are each optional
// capabilities a component opts into by implementing the relevant
// interface. The registry and machine packages use type assertions
// against these interfaces rather than a single monolithic one, so a
// component only carries the weight of what it actually does.
package component

import (
	"github.com/embervale/machina/audiosink"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/paths"
)

// Id is a dense, interned handle for a registered component. It is cheap
// to copy and compare, and is stable for the lifetime of a built machine.
type Id uint16

// InvalidId is never assigned to a real component.
const InvalidId Id = 0

// AddressSpaceId is a dense, interned handle for a registered address
// space, analogous to Id.
type AddressSpaceId uint16

// InvalidAddressSpaceId is never assigned to a real address space.
const InvalidAddressSpaceId AddressSpaceId = 0

// Participation describes how a component takes part in the scheduler's
// timeline.
type Participation int

const (
	// ParticipationNone means the component never needs to be scheduled;
	// it is driven entirely by memory accesses from other components.
	ParticipationNone Participation = iota

	// ParticipationOnDemand means the scheduler never drives the component;
	// it is caught up to the current timestamp when something interacts
	// with it through the registry.
	ParticipationOnDemand

	// ParticipationSchedulerDriven means the scheduler synchronizes the
	// component each time the period it last allocated comes due.
	ParticipationSchedulerDriven
)

// String implements fmt.Stringer.
func (p Participation) String() string {
	switch p {
	case ParticipationNone:
		return "none"
	case ParticipationOnDemand:
		return "on-demand"
	case ParticipationSchedulerDriven:
		return "scheduler-driven"
	default:
		return "unknown"
	}
}

// Component is the minimum any participant in a machine must implement.
type Component interface {
	// Path returns the component's position in the machine's hierarchy.
	Path() paths.ComponentPath

	// Reset returns the component to its power-on state.
	Reset()
}

// Redirect is returned by ReadMemory, WriteMemory or PreviewMemory in
// place of serving the access itself: the component holding [offset,
// offset+len(buf)) does not hold the requested bytes, and the access
// should be retried at Address within Space instead. A mirror region or a
// cartridge bank window is expressed this way rather than by teaching the
// address space about every component's internal indirection.
type Redirect struct {
	Address uint32
	Space   AddressSpaceId
}

// Error implements the error interface, so a Redirect can be returned
// directly wherever ReadMemory/WriteMemory/PreviewMemory expects an error.
func (r *Redirect) Error() string {
	return emuerrors.Errorf(emuerrors.Redirect, r.Address).Error()
}

// MemoryAccessor is implemented by components mapped into an address
// space for both reading and writing.
type MemoryAccessor interface {
	Component

	// ReadMemory fills buf with the bytes starting at offset into the
	// component's mapped region, within address space space. A component
	// whose storage for this range lives elsewhere returns a *Redirect
	// rather than any of buf's bytes.
	ReadMemory(offset uint32, space AddressSpaceId, buf []byte) error

	// WriteMemory writes buf to the bytes starting at offset into the
	// component's mapped region, within address space space. A component
	// whose storage for this range lives elsewhere returns a *Redirect.
	WriteMemory(offset uint32, space AddressSpaceId, buf []byte) error
}

// MemoryPreviewer is implemented by components that can report the
// values at a range of addresses without the side effects a real read
// might trigger (for example, a FIFO would normally pop its head on read;
// previewing it should not).
type MemoryPreviewer interface {
	// PreviewMemory fills buf with what a ReadMemory call at offset would
	// currently return, without the side effects of an actual read. A
	// component whose storage for this range lives elsewhere returns a
	// *Redirect, exactly as ReadMemory would.
	PreviewMemory(offset uint32, space AddressSpaceId, buf []byte) error
}

// FramebufferAccessor is implemented by components that produce a video
// image.
type FramebufferAccessor interface {
	Component

	// AccessFramebuffer returns the component's current framebuffer
	// contents along with its pixel dimensions.
	AccessFramebuffer() (pixels []byte, width int, height int, err error)
}

// AudioSampler is implemented by components that produce audio output.
type AudioSampler interface {
	Component

	// Samples returns a mutable handle to the ring buffer of interleaved
	// stereo float samples this component has generated for name. A
	// frontend (or audiosink.Recorder) drains it at its own pace; the
	// component keeps pushing into it as it runs.
	Samples(name string) *audiosink.RingBuffer
}

// Saveable is implemented by components with persistent state that
// should survive a save/load cycle. Version is bumped by component
// authors whenever the shape of the saved data changes incompatibly; the
// save package refuses to Load data recorded under a different version.
type Saveable interface {
	Component

	// Version returns the current save format version.
	Version() int

	// Save returns the component's state as an opaque byte buffer.
	Save() ([]byte, error)

	// Load restores the component's state from a buffer previously
	// returned by Save, recorded under the given version.
	Load(version int, data []byte) error
}

// Snapshotter is implemented by components whose in-flight state can be
// captured cheaply enough to support rewind. Unlike Saveable, a snapshot
// need not survive a process restart.
type Snapshotter interface {
	Component

	// Snapshot captures the component's current state.
	Snapshot() Snapshot

	// Restore applies a previously captured Snapshot.
	Restore(Snapshot)
}

// Snapshot is an opaque capture of a Snapshotter's state at one instant.
type Snapshot interface {
	// IsCrunched reports whether the snapshot is currently held in a
	// compressed representation.
	IsCrunched() bool
}

// Initializer is implemented by components whose construction must be
// deferred until the rest of the machine has been built (for example, a
// component that needs to look up a sibling by path). MachineBuilder
// calls Initialize once, after every component has been registered but
// before the machine is returned to the caller.
type Initializer interface {
	Component

	Initialize() error
}
