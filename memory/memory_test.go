package memory_test

import (
	"testing"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/memory"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/registry"
	"github.com/embervale/machina/test"
)

type ram struct {
	path paths.ComponentPath
	data []byte
}

func (r *ram) Path() paths.ComponentPath { return r.path }
func (r *ram) Reset() {
	for i := range r.data {
		r.data[i] = 0
	}
}
func (r *ram) ReadMemory(offset uint32, _ component.AddressSpaceId, buf []byte) error {
	copy(buf, r.data[offset:])
	return nil
}
func (r *ram) WriteMemory(offset uint32, _ component.AddressSpaceId, buf []byte) error {
	copy(r.data[offset:], buf)
	return nil
}

type rom struct {
	path paths.ComponentPath
	data []byte
}

func (r *rom) Path() paths.ComponentPath { return r.path }
func (r *rom) Reset()                    {}
func (r *rom) ReadMemory(offset uint32, _ component.AddressSpaceId, buf []byte) error {
	copy(buf, r.data[offset:])
	return nil
}
func (r *rom) WriteMemory(offset uint32, _ component.AddressSpaceId, buf []byte) error {
	return emuerrors.Errorf(emuerrors.Denied, "rom is read only")
}

// redirector always redirects an access to a fixed address in dest,
// exercising the component-level Redirect mechanism exactly as a mirror
// or bank-window component would: it never serves a byte itself.
type redirector struct {
	path paths.ComponentPath
	dest component.AddressSpaceId
	to   uint32
}

func (r *redirector) Path() paths.ComponentPath { return r.path }
func (r *redirector) Reset()                    {}
func (r *redirector) ReadMemory(offset uint32, _ component.AddressSpaceId, buf []byte) error {
	return &component.Redirect{Address: r.to + offset, Space: r.dest}
}
func (r *redirector) WriteMemory(offset uint32, _ component.AddressSpaceId, buf []byte) error {
	return &component.Redirect{Address: r.to + offset, Space: r.dest}
}

func buildTable(t *testing.T) (*memory.MemoryAccessTable, component.AddressSpaceId, *ram) {
	t.Helper()

	reg := registry.New()
	r := &ram{path: paths.New("ram"), data: make([]byte, 0x100)}
	ramID, err := reg.Register(r.path, r, false)
	test.ExpectSuccess(t, err)

	rm := &rom{path: paths.New("rom"), data: []byte{0xde, 0xad, 0xbe, 0xef}}
	romID, err := reg.Register(rm.path, rm, false)
	test.ExpectSuccess(t, err)

	as := memory.NewAddressSpace(1, "bus", 16)
	test.ExpectSuccess(t, as.MapComponent(ramID, 0x0000, 0x00ff, 0, true, true))
	test.ExpectSuccess(t, as.MapComponent(romID, 0xf000, 0xf003, 0, true, false))

	table := memory.NewMemoryAccessTable(reg)
	table.AddAddressSpace(as)

	return table, as.Id(), r
}

func TestReadWriteRAM(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	err := table.Write(spaceID, 0x0010, []byte{0x42})
	test.ExpectSuccess(t, err)

	buf := make([]byte, 1)
	err = table.Read(spaceID, 0x0010, buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, buf[0], uint8(0x42))
}

func TestReadWriteRAMMultiByte(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	test.ExpectSuccess(t, table.Write(spaceID, 0x0010, []byte{1, 2, 3, 4}))

	buf := make([]byte, 4)
	test.ExpectSuccess(t, table.Read(spaceID, 0x0010, buf))
	test.ExpectEquality(t, buf, []byte{1, 2, 3, 4})
}

func TestReadROM(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	buf := make([]byte, 1)
	err := table.Read(spaceID, 0xf001, buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, buf[0], uint8(0xad))
}

func TestWriteROMOutOfBus(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	err := table.Write(spaceID, 0xf001, []byte{0x00})
	test.ExpectFailure(t, err)
	test.ExpectSuccess(t, emuerrors.Is(err, emuerrors.OutOfBus))
}

func TestOutOfBus(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	buf := make([]byte, 1)
	err := table.Read(spaceID, 0x5000, buf)
	test.ExpectFailure(t, err)
	test.ExpectSuccess(t, emuerrors.Is(err, emuerrors.OutOfBus))
}

func TestUnknownAddressSpace(t *testing.T) {
	table, _, _ := buildTable(t)

	buf := make([]byte, 1)
	err := table.Read(component.AddressSpaceId(99), 0x0000, buf)
	test.ExpectFailure(t, err)
}

func TestMirror(t *testing.T) {
	reg := registry.New()
	r := &ram{path: paths.New("ram"), data: make([]byte, 0x80)}
	ramID, err := reg.Register(r.path, r, false)
	test.ExpectSuccess(t, err)

	as := memory.NewAddressSpace(1, "bus", 16)
	test.ExpectSuccess(t, as.MapComponent(ramID, 0x0000, 0x007f, 0, true, true))
	// mirror the 128 byte RAM across the next 896 bytes.
	test.ExpectSuccess(t, as.MapMirror(0x0080, 0x03ff, 0x0000))

	table := memory.NewMemoryAccessTable(reg)
	table.AddAddressSpace(as)

	test.ExpectSuccess(t, table.Write(as.Id(), 0x0001, []byte{0x55}))

	buf := make([]byte, 1)
	err = table.Read(as.Id(), 0x0081, buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, buf[0], uint8(0x55))
}

func TestPreviewFallsBackToRead(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	test.ExpectSuccess(t, table.Write(spaceID, 0x0020, []byte{0x99}))

	buf := make([]byte, 1)
	err := table.Preview(spaceID, 0x0020, buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, buf[0], uint8(0x99))
}

// TestComponentRedirect exercises the component-level Redirect mechanism:
// a write to the redirecting component's mapped region at 0x0010 is
// retried at 0x0020 in the destination component, and a preview at 0x0020
// afterward sees it land there.
func TestComponentRedirect(t *testing.T) {
	reg := registry.New()

	dest := &ram{path: paths.New("ram"), data: make([]byte, 0x100)}
	destID, err := reg.Register(dest.path, dest, false)
	test.ExpectSuccess(t, err)

	as := memory.NewAddressSpace(1, "bus", 16)
	test.ExpectSuccess(t, as.MapComponent(destID, 0x0020, 0x002f, 0, true, true))

	r := &redirector{path: paths.New("redirect"), dest: as.Id(), to: 0x0020}
	rID, err := reg.Register(r.path, r, false)
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, as.MapComponent(rID, 0x0010, 0x001f, 0, true, true))

	table := memory.NewMemoryAccessTable(reg)
	table.AddAddressSpace(as)

	test.ExpectSuccess(t, table.Write(as.Id(), 0x0010, []byte{0xaa}))

	buf := make([]byte, 1)
	test.ExpectSuccess(t, table.Preview(as.Id(), 0x0020, buf))
	test.ExpectEquality(t, buf[0], uint8(0xaa))
}

// TestWidthMaskWraps ensures an address above the space's declared width
// wraps rather than reporting OutOfBus, per the width-masking invariant.
func TestWidthMaskWraps(t *testing.T) {
	table, spaceID, _ := buildTable(t)

	test.ExpectSuccess(t, table.Write(spaceID, 0x0010, []byte{0x77}))

	buf := make([]byte, 1)
	// the bus is 16 bits wide; 0x10010 wraps back to 0x0010.
	test.ExpectSuccess(t, table.Read(spaceID, 0x10010, buf))
	test.ExpectEquality(t, buf[0], uint8(0x77))
}
