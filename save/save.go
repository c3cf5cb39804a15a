// Package save persists and restores component state. It provides two
// parallel managers of identical shape but different purpose: SaveManager
// writes battery-backed persistent state to disk, keyed by a ROM
// identifier, while SnapshotManager captures full in-memory runtime state
// into numbered slots for rewind. Per component, a version gates
// participation: a version mismatch on load is a per-component
// recoverable error, never a reason to abort the whole operation.
package save

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/logger"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/resources"
)

// Source is the subset of a built machine's registry the save package
// needs: enumeration, path lookup in both directions, and a way to touch
// a component on whichever thread it requires.
type Source interface {
	All() []component.Id
	Path(id component.Id) (paths.ComponentPath, bool)
	Lookup(path paths.ComponentPath) (component.Id, bool)
	Interact(id component.Id, fn func(component.Component)) error
}

// ComponentError records a per-component failure that did not prevent the
// rest of a Save or Load from completing.
type ComponentError struct {
	Path paths.ComponentPath
	Err  error
}

func (e ComponentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

const fileMagic = "machina-save\x00"

// SaveManager writes and restores persistent, battery-backed component
// state to and from a single file on disk.
type SaveManager struct {
	src Source
}

// NewSaveManager is the preferred method of initialisation for the
// SaveManager type.
func NewSaveManager(src Source) *SaveManager {
	return &SaveManager{src: src}
}

// Save walks the registry, serializing every component that implements
// component.Saveable into filename. A component whose Save call fails is
// skipped and recorded in the returned slice; the file still contains
// every component that succeeded.
func (m *SaveManager) Save(filename string) ([]ComponentError, error) {
	var failures []ComponentError
	type record struct {
		path    string
		version int
		data    []byte
	}
	var records []record

	for _, id := range m.src.All() {
		p, ok := m.src.Path(id)
		if !ok {
			continue
		}

		var data []byte
		var saveErr error
		var participates bool
		err := m.src.Interact(id, func(c component.Component) {
			s, ok := c.(component.Saveable)
			if !ok {
				return
			}
			participates = true
			data, saveErr = s.Save()
		})
		if err != nil {
			failures = append(failures, ComponentError{Path: p, Err: err})
			continue
		}
		if !participates {
			continue
		}
		if saveErr != nil {
			failures = append(failures, ComponentError{Path: p, Err: saveErr})
			continue
		}

		version, err := m.versionOf(id)
		if err != nil {
			failures = append(failures, ComponentError{Path: p, Err: err})
			continue
		}

		records = append(records, record{path: p.String(), version: version, data: data})
	}

	f, err := os.Create(filename)
	if err != nil {
		return failures, emuerrors.Errorf(emuerrors.InvalidConfig, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(fileMagic); err != nil {
		return failures, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(records))); err != nil {
		return failures, err
	}
	for _, r := range records {
		if err := writeRecord(w, r.path, r.version, r.data); err != nil {
			return failures, err
		}
	}
	if err := w.Flush(); err != nil {
		return failures, err
	}

	logger.Logf(logger.Allow, "save", "wrote %d component(s) to %s", len(records), filename)
	return failures, nil
}

// Load reads filename and restores every component it mentions that is
// still present in the registry. A record whose component is no longer
// registered, or whose saved version no longer matches, is skipped and
// recorded in the returned slice rather than aborting the rest of the
// load. A registered component with no saved record is left untouched and
// is not recorded.
func (m *SaveManager) Load(filename string) ([]ComponentError, error) {
	var failures []ComponentError

	f, err := os.Open(filename)
	if err != nil {
		return nil, emuerrors.Errorf(emuerrors.InvalidConfig, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return nil, emuerrors.Errorf(emuerrors.InvalidConfig, "not a machina save file")
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	for i := uint32(0); i < count; i++ {
		pathStr, version, data, err := readRecord(r)
		if err != nil {
			return failures, err
		}

		p, err := paths.Parse(pathStr)
		if err != nil {
			failures = append(failures, ComponentError{Err: err})
			continue
		}

		id, ok := m.src.Lookup(p)
		if !ok {
			failures = append(failures, ComponentError{Path: p, Err: emuerrors.Errorf(emuerrors.ComponentNotFound, p)})
			continue
		}

		var loadErr error
		var participates bool
		err = m.src.Interact(id, func(c component.Component) {
			s, ok := c.(component.Saveable)
			if !ok {
				return
			}
			participates = true
			if s.Version() != version {
				loadErr = emuerrors.Errorf(emuerrors.BadVersion, p, s.Version(), version)
				return
			}
			loadErr = s.Load(version, data)
		})
		if err != nil {
			failures = append(failures, ComponentError{Path: p, Err: err})
			continue
		}
		if !participates {
			continue
		}
		if loadErr != nil {
			failures = append(failures, ComponentError{Path: p, Err: loadErr})
		}
	}

	return failures, nil
}

// SaveToResource is Save, writing into name beneath the framework's
// resource directory rather than an arbitrary caller-chosen path. ROM id
// identifies which battery-backed save this is, so different ROMs loaded
// against the same machine don't share a file.
func (m *SaveManager) SaveToResource(romId string, name string) ([]ComponentError, error) {
	path, err := resources.JoinPath("saves", romId, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, emuerrors.Errorf(emuerrors.InvalidConfig, err)
	}
	return m.Save(path)
}

// LoadFromResource is Load, reading from name beneath the framework's
// resource directory, mirroring SaveToResource.
func (m *SaveManager) LoadFromResource(romId string, name string) ([]ComponentError, error) {
	path, err := resources.JoinPath("saves", romId, name)
	if err != nil {
		return nil, err
	}
	return m.Load(path)
}

func (m *SaveManager) versionOf(id component.Id) (int, error) {
	var version int
	err := m.src.Interact(id, func(c component.Component) {
		if s, ok := c.(component.Saveable); ok {
			version = s.Version()
		}
	})
	return version, err
}

func writeRecord(w io.Writer, path string, version int, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(path))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, path); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(version)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readRecord(r io.Reader) (path string, version int, data []byte, err error) {
	var pathLen uint32
	if err = binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
		return
	}
	pathBuf := make([]byte, pathLen)
	if _, err = io.ReadFull(r, pathBuf); err != nil {
		return
	}
	path = string(pathBuf)

	var v int32
	if err = binary.Read(r, binary.LittleEndian, &v); err != nil {
		return
	}
	version = int(v)

	var dataLen uint32
	if err = binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return
	}
	data = make([]byte, dataLen)
	_, err = io.ReadFull(r, data)
	return
}
