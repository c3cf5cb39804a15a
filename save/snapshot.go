package save

import (
	"github.com/embervale/machina/component"
	"github.com/embervale/machina/crunched"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/paths"
)

// Slot identifies one runtime snapshot, for example one position on a
// rewind timeline.
type Slot uint16

// snapshotRecord is one component's captured state within a slot.
type snapshotRecord struct {
	path paths.ComponentPath
	data component.Snapshot
}

// SnapshotManager captures and restores full runtime state into numbered
// slots. Unlike SaveManager it never touches disk: slots live only as
// long as the process does, which is what makes them cheap enough to take
// on every frame for a rewind feature.
type SnapshotManager struct {
	src   Source
	slots map[Slot][]snapshotRecord
}

// NewSnapshotManager is the preferred method of initialisation for the
// SnapshotManager type.
func NewSnapshotManager(src Source) *SnapshotManager {
	return &SnapshotManager{
		src:   src,
		slots: make(map[Slot][]snapshotRecord),
	}
}

// Capture walks the registry, capturing the state of every component that
// implements component.Snapshotter into slot, overwriting whatever was
// previously stored there.
func (m *SnapshotManager) Capture(slot Slot) []ComponentError {
	var failures []ComponentError
	var records []snapshotRecord

	for _, id := range m.src.All() {
		p, ok := m.src.Path(id)
		if !ok {
			continue
		}

		var snap component.Snapshot
		var participates bool
		err := m.src.Interact(id, func(c component.Component) {
			s, ok := c.(component.Snapshotter)
			if !ok {
				return
			}
			participates = true
			snap = crunch(s.Snapshot())
		})
		if err != nil {
			failures = append(failures, ComponentError{Path: p, Err: err})
			continue
		}
		if !participates {
			continue
		}

		records = append(records, snapshotRecord{path: p, data: snap})
	}

	m.slots[slot] = records
	return failures
}

// Restore applies every record captured in slot back to its component. A
// component no longer present in the registry is skipped and recorded
// rather than treated as fatal; one that no longer implements
// component.Snapshotter is skipped without being recorded.
func (m *SnapshotManager) Restore(slot Slot) ([]ComponentError, error) {
	records, ok := m.slots[slot]
	if !ok {
		return nil, emuerrors.Errorf(emuerrors.InvalidConfig, "no snapshot in slot %d", slot)
	}

	var failures []ComponentError
	for _, rec := range records {
		id, ok := m.src.Lookup(rec.path)
		if !ok {
			failures = append(failures, ComponentError{Path: rec.path, Err: emuerrors.Errorf(emuerrors.ComponentNotFound, rec.path)})
			continue
		}

		err := m.src.Interact(id, func(c component.Component) {
			if s, ok := c.(component.Snapshotter); ok {
				s.Restore(rec.data)
			}
		})
		if err != nil {
			failures = append(failures, ComponentError{Path: rec.path, Err: err})
		}
	}

	return failures, nil
}

// Discard removes every record stored in slot, freeing its memory.
func (m *SnapshotManager) Discard(slot Slot) {
	delete(m.slots, slot)
}

// Slots returns the slot numbers currently holding a capture, in no
// particular order.
func (m *SnapshotManager) Slots() []Slot {
	slots := make([]Slot, 0, len(m.slots))
	for s := range m.slots {
		slots = append(slots, s)
	}
	return slots
}

// crunch forces any snapshot backed by crunched.Data into its crunched
// form before it goes into a slot, so a large, mostly-repetitive state
// buffer (a framebuffer-sized RAM, for example) doesn't hold onto
// uncompressed bytes across every recorded rewind point. Snapshotters
// that don't return a crunched.Data are stored exactly as given.
func crunch(snap component.Snapshot) component.Snapshot {
	data, ok := snap.(crunched.Data)
	if !ok {
		return snap
	}
	return data.Snapshot()
}
