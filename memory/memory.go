// Package memory implements the address-space mapping engine: the
// structure that turns a bus address into "which component, and what
// offset into it" in time proportional to a small, fixed number of array
// lookups rather than a linear scan of every mapped region.
//
// An AddressSpace divides its address range into fixed-size pages. Each
// page independently tracks how it is mapped: empty (any access is out of
// bus), singly mapped (the whole page belongs to one component, the
// common case for RAM/ROM regions sized in page multiples), or mixed
// (more than one region shares the page, requiring a short search over
// its entries). Read and write access are tracked independently, so a ROM
// region can map for reads only.
package memory

import (
	"sort"
	"sync"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
)

// defaultPageBits sizes pages at 256 bytes, matching the granularity
// memory-mapped I/O is conventionally described at.
const defaultPageBits = 8

// kind distinguishes a direct component mapping from a mirror of another
// region of the same address space.
type kind int

const (
	kindComponent kind = iota
	kindMirror
)

// MappingEntry describes one mapped region of an address space.
type MappingEntry struct {
	kind kind

	// start and end are inclusive bus addresses this entry covers.
	start uint32
	end   uint32

	// Component and ComponentBase apply when kind == kindComponent:
	// offset into the component is ComponentBase + (addr - start).
	Component     component.Id
	ComponentBase uint32

	// MirrorOf applies when kind == kindMirror: the mirrored address is
	// MirrorOf + (addr - start), to be resolved again from scratch.
	MirrorOf uint32
}

// page is the dispatch unit for one page's worth of addresses.
type page struct {
	// single is used when exactly one entry covers the whole page. It is
	// the fast, and overwhelmingly common, path.
	single *MappingEntry

	// mixed is used when a page is covered by more than one entry, or by
	// an entry that only partly covers it. Entries are kept sorted by
	// start address; resolution does a short linear scan.
	mixed []*MappingEntry
}

func (p *page) empty() bool {
	return p.single == nil && len(p.mixed) == 0
}

func (p *page) resolve(addr uint32) (*MappingEntry, bool) {
	if p.single != nil {
		return p.single, true
	}
	for _, e := range p.mixed {
		if addr >= e.start && addr <= e.end {
			return e, true
		}
	}
	return nil, false
}

// visitOverlapping calls visit for every entry in the page that overlaps
// [start, end]. A Single page short-circuits once it is known to fully
// cover the access range, since nothing else in the page could possibly
// also apply; a Mixed page has no such guarantee and is walked with a
// binary search to the first entry that could overlap start, then outward
// in both directions while entries keep overlapping: entries below the
// search point first, in descending start order, then the rest in
// ascending start order.
func (p *page) visitOverlapping(start, end uint32, visit func(e *MappingEntry)) {
	if p.single != nil {
		e := p.single
		if e.end < start || e.start > end {
			return
		}
		visit(e)
		return
	}

	entries := p.mixed
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case entries[mid].end < start:
			lo = mid + 1
		case entries[mid].start > start:
			hi = mid
		default:
			lo, hi = mid, mid
		}
	}

	for i := lo - 1; i >= 0 && entries[i].end >= start; i-- {
		visit(entries[i])
	}
	for i := lo; i < len(entries) && entries[i].start <= end; i++ {
		visit(entries[i])
	}
}

// dispatchTable is one direction (read or write) of an AddressSpace's
// mapping.
type dispatchTable struct {
	pageBits uint
	pages    []page
}

func newDispatchTable(width uint, pageBits uint) *dispatchTable {
	numPages := uint32(1) << (width - pageBits)
	return &dispatchTable{
		pageBits: pageBits,
		pages:    make([]page, numPages),
	}
}

func (d *dispatchTable) pageIndex(addr uint32) uint32 {
	return addr >> d.pageBits
}

func (d *dispatchTable) pageSize() uint32 {
	return uint32(1) << d.pageBits
}

func (d *dispatchTable) add(e *MappingEntry) {
	pageSize := d.pageSize()
	first := d.pageIndex(e.start)
	last := d.pageIndex(e.end)

	for pi := first; pi <= last; pi++ {
		pageStart := pi * pageSize
		pageEnd := pageStart + pageSize - 1

		p := &d.pages[pi]
		coversWholePage := e.start <= pageStart && e.end >= pageEnd

		if coversWholePage && p.empty() {
			p.single = e
			continue
		}

		// demote an existing single mapping to mixed before adding
		// another entry alongside it.
		if p.single != nil {
			p.mixed = append(p.mixed, p.single)
			p.single = nil
		}

		// keep mixed sorted by start so visitOverlapping can binary search it.
		i := sort.Search(len(p.mixed), func(i int) bool { return p.mixed[i].start > e.start })
		p.mixed = append(p.mixed, nil)
		copy(p.mixed[i+1:], p.mixed[i:])
		p.mixed[i] = e
	}
}

func (d *dispatchTable) resolve(addr uint32) (*MappingEntry, bool) {
	pi := d.pageIndex(addr)
	if int(pi) >= len(d.pages) {
		return nil, false
	}
	return d.pages[pi].resolve(addr)
}

// visitOverlapping walks every page spanning [start, end], invoking visit
// for each mapping entry that overlaps the range. A Single page stops the
// whole walk as soon as it is known to fully cover the remaining access
// range; a page with no mapping at all contributes nothing and the walk
// continues into the next page.
func (d *dispatchTable) visitOverlapping(start, end uint32, visit func(e *MappingEntry)) {
	firstPage := d.pageIndex(start)
	lastPage := d.pageIndex(end)

	// an entry spanning a page boundary is listed in both pages, as the
	// last entry visited in one and the first in the next; skip the repeat
	// so it is visited only once.
	var last *MappingEntry
	once := func(e *MappingEntry) {
		if e == last {
			return
		}
		last = e
		visit(e)
	}

	for pi := firstPage; pi <= lastPage; pi++ {
		if int(pi) >= len(d.pages) {
			return
		}
		p := &d.pages[pi]

		if p.single != nil && p.single.start <= start && p.single.end >= end {
			once(p.single)
			return
		}

		p.visitOverlapping(start, end, once)
	}
}

// AddressSpace is a single addressable bus: an address width, and
// independent read and write mapping tables.
type AddressSpace struct {
	mu sync.RWMutex

	id    component.AddressSpaceId
	name  string
	width uint
	mask  uint32

	read  *dispatchTable
	write *dispatchTable
}

// NewAddressSpace is the preferred method of initialisation for the
// AddressSpace type. width is the address bus width in bits (for example
// 16 for a 64KiB address space).
func NewAddressSpace(id component.AddressSpaceId, name string, width uint) *AddressSpace {
	return &AddressSpace{
		id:    id,
		name:  name,
		width: width,
		mask:  (uint32(1) << width) - 1,
		read:  newDispatchTable(width, defaultPageBits),
		write: newDispatchTable(width, defaultPageBits),
	}
}

// Id returns the address space's interned handle.
func (as *AddressSpace) Id() component.AddressSpaceId { return as.id }

// Name returns the address space's display name.
func (as *AddressSpace) Name() string { return as.name }

// Mask returns the address space's bus mask (width bits set).
func (as *AddressSpace) Mask() uint32 { return as.mask }

// MapComponent maps [start, end] (inclusive) to comp, such that address
// start corresponds to offset componentBase within the component.
// readable and writable independently control which dispatch table(s)
// the mapping is added to; a ROM region, for instance, maps readable
// only.
func (as *AddressSpace) MapComponent(comp component.Id, start, end, componentBase uint32, readable, writable bool) error {
	if start > end || end > as.mask {
		return emuerrors.Errorf(emuerrors.OutOfBus, end)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if readable {
		as.read.add(&MappingEntry{kind: kindComponent, start: start, end: end, Component: comp, ComponentBase: componentBase})
	}
	if writable {
		as.write.add(&MappingEntry{kind: kindComponent, start: start, end: end, Component: comp, ComponentBase: componentBase})
	}
	return nil
}

// MapMirror maps [start, end] (inclusive) as a mirror of the region
// beginning at mirrorOf: resolving an address in [start, end] resolves
// mirrorOf+(addr-start) instead. Mirrors apply to both read and write
// dispatch.
func (as *AddressSpace) MapMirror(start, end, mirrorOf uint32) error {
	if start > end || end > as.mask {
		return emuerrors.Errorf(emuerrors.OutOfBus, end)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	as.read.add(&MappingEntry{kind: kindMirror, start: start, end: end, MirrorOf: mirrorOf})
	as.write.add(&MappingEntry{kind: kindMirror, start: start, end: end, MirrorOf: mirrorOf})
	return nil
}

// VisitRange masks [addr, addr+length-1] by the address space's width and
// calls visit, in the dispatch table's natural walk order, for every entry
// (component mapping or address-space mirror) overlapping the masked
// range. It is the page/range-walk primitive the buffer-based Read, Write
// and Preview entry points are built on; length must be at least 1.
func (as *AddressSpace) VisitRange(addr, length uint32, write bool, visit func(e *MappingEntry)) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	addr &= as.mask
	end := addr + length - 1

	table := as.read
	if write {
		table = as.write
	}
	table.visitOverlapping(addr, end, visit)
}

// MaskAddress applies the address space's width mask to addr, the same
// masking every access performs before resolving.
func (as *AddressSpace) MaskAddress(addr uint32) uint32 {
	return addr & as.mask
}

// maxRedirectDepth bounds mirror-chasing so a cyclic mirror configuration
// fails fast with Impossible rather than recursing forever.
const maxRedirectDepth = 16

// Resolve turns addr into the component and offset a read (or, if write
// is true, a write) access at addr should be directed to, following
// mirror redirects as needed. It returns OutOfBus if no mapping covers
// addr in the requested direction (a read-only region's write side, for
// instance, is simply unmapped in the write table and surfaces as
// OutOfBus), and Impossible if the mirror chain is deeper than
// maxRedirectDepth. It never returns Denied, which is reserved for a
// mapped component that refuses the access itself.
func (as *AddressSpace) Resolve(addr uint32, write bool) (component.Id, uint32, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	addr &= as.mask

	table := as.read
	if write {
		table = as.write
	}

	for depth := 0; depth < maxRedirectDepth; depth++ {
		e, ok := table.resolve(addr)
		if !ok {
			return component.InvalidId, 0, emuerrors.Errorf(emuerrors.OutOfBus, addr)
		}

		if e.kind == kindComponent {
			return e.Component, e.ComponentBase + (addr - e.start), nil
		}

		addr = e.MirrorOf + (addr - e.start)
	}

	return component.InvalidId, 0, emuerrors.Errorf(emuerrors.Impossible, "redirect chain too deep")
}
