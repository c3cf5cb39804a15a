package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/logger"
)

// Interactor performs an action against a registered component, on
// whichever thread that component requires. *registry.Registry satisfies
// this.
type Interactor interface {
	Interact(id component.Id, fn func(component.Component)) error
}

// MemoryAccessTable is the single entry point components, the debugger
// and the save manager use to read and write bus addresses. Read, Write
// and Preview take a buffer rather than a single byte: a multi-byte
// access may span several mapped components, and a component may redirect
// part or all of it elsewhere, so the table works a small stack of
// outstanding sub-ranges rather than resolving one address at a time.
type MemoryAccessTable struct {
	mu     sync.RWMutex
	reg    Interactor
	spaces map[component.AddressSpaceId]*AddressSpace
}

// NewMemoryAccessTable is the preferred method of initialisation for the
// MemoryAccessTable type.
func NewMemoryAccessTable(reg Interactor) *MemoryAccessTable {
	return &MemoryAccessTable{
		reg:    reg,
		spaces: make(map[component.AddressSpaceId]*AddressSpace),
	}
}

// AddAddressSpace registers as with the table under its own Id.
func (t *MemoryAccessTable) AddAddressSpace(as *AddressSpace) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spaces[as.Id()] = as
}

// AddressSpace returns the address space registered under id.
func (t *MemoryAccessTable) AddressSpace(id component.AddressSpaceId) (*AddressSpace, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	as, ok := t.spaces[id]
	return as, ok
}

// RangeFailure records that [Start, End] (inclusive byte offsets within
// the buffer originally passed to Read/Write/Preview) could not be
// serviced, and why.
type RangeFailure struct {
	Start, End int
	Err        error
}

// AccessError collects the RangeFailures produced by a single buffer
// access. Bytes not mentioned by any RangeFailure were serviced
// successfully; an access that fails uniformly (the common case — no
// mapping at all, or one component denying the whole buffer) is reported
// as that one error directly rather than wrapped here, so callers that
// only care whether the access succeeded can keep comparing against
// emuerrors.Is as before.
type AccessError struct {
	Failures []RangeFailure
}

func (e *AccessError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("[%d-%d]=%v", f.Start, f.End, f.Err)
	}
	return "memory access failed over multiple sub-ranges: " + strings.Join(parts, ", ")
}

// finish turns a slice of accumulated failures into the error a
// Read/Write/Preview call should return: nil if nothing failed, the bare
// error if exactly one sub-range failed, or an *AccessError if the
// failures are scattered across more than one.
func finish(failures []RangeFailure) error {
	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0].Err
	default:
		return &AccessError{Failures: failures}
	}
}

// step is one outstanding piece of work in a buffer access: touch
// buf[bufStart:bufEnd+1] at addr within space. depth counts how many
// times this sub-range has been redirected, so a misconfigured mirror
// cycle fails with Impossible instead of looping forever.
type step struct {
	addr             uint32
	space            component.AddressSpaceId
	bufStart, bufEnd int
	depth            int
}

type direction int

const (
	dirRead direction = iota
	dirWrite
	dirPreview
)

// Read fills buf with the contents of [addr, addr+len(buf)) in address
// space id.
func (t *MemoryAccessTable) Read(id component.AddressSpaceId, addr uint32, buf []byte) error {
	return t.access(id, addr, buf, dirRead)
}

// Write stores buf into [addr, addr+len(buf)) in address space id.
func (t *MemoryAccessTable) Write(id component.AddressSpaceId, addr uint32, buf []byte) error {
	return t.access(id, addr, buf, dirWrite)
}

// Preview fills buf with what Read would currently return for the same
// range, without the side effects of an actual read, for every resolved
// component that implements component.MemoryPreviewer. Components that
// don't are read directly, which may have side effects — callers that
// need a guaranteed side-effect-free preview should check for
// component.MemoryPreviewer themselves before relying on this fallback.
func (t *MemoryAccessTable) Preview(id component.AddressSpaceId, addr uint32, buf []byte) error {
	return t.access(id, addr, buf, dirPreview)
}

func (t *MemoryAccessTable) access(id component.AddressSpaceId, addr uint32, buf []byte, dir direction) error {
	if len(buf) == 0 {
		return nil
	}

	stack := []step{{addr: addr, space: id, bufStart: 0, bufEnd: len(buf) - 1}}
	var failures []RangeFailure

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.depth > maxRedirectDepth {
			failures = append(failures, RangeFailure{n.bufStart, n.bufEnd, emuerrors.Errorf(emuerrors.Impossible, "redirect chain too deep")})
			continue
		}

		as, ok := t.AddressSpace(n.space)
		if !ok {
			failures = append(failures, RangeFailure{n.bufStart, n.bufEnd, emuerrors.Errorf(emuerrors.OutOfBus, n.addr)})
			continue
		}

		// TODO: a buffer access whose end address crosses the width mask
		// boundary does not currently wrap; only the start address is
		// masked before the range is walked.
		length := uint32(n.bufEnd-n.bufStart) + 1
		maskedAddr := as.MaskAddress(n.addr)
		handled := false

		as.VisitRange(n.addr, length, dir == dirWrite, func(e *MappingEntry) {
			handled = true

			overlapStart := max(maskedAddr, e.start)
			overlapEnd := min(maskedAddr+length-1, e.end)
			subOff := overlapStart - maskedAddr
			subBufStart := n.bufStart + int(subOff)
			subBufEnd := subBufStart + int(overlapEnd-overlapStart)
			sub := buf[subBufStart : subBufEnd+1]

			if e.kind == kindMirror {
				stack = append(stack, step{
					addr:     e.MirrorOf + (overlapStart - e.start),
					space:    n.space,
					bufStart: subBufStart,
					bufEnd:   subBufEnd,
					depth:    n.depth + 1,
				})
				return
			}

			offset := e.ComponentBase + (overlapStart - e.start)

			var accessErr error
			err := t.reg.Interact(e.Component, func(c component.Component) {
				accessErr = invoke(c, dir, offset, n.space, sub)
			})
			if err != nil {
				failures = append(failures, RangeFailure{subBufStart, subBufEnd, err})
				return
			}

			if accessErr == nil {
				return
			}

			var redirect *component.Redirect
			if errors.As(accessErr, &redirect) {
				stack = append(stack, step{
					addr:     redirect.Address,
					space:    redirect.Space,
					bufStart: subBufStart,
					bufEnd:   subBufEnd,
					depth:    n.depth + 1,
				})
				return
			}

			failures = append(failures, RangeFailure{subBufStart, subBufEnd, accessErr})
		})

		if !handled {
			failures = append(failures, RangeFailure{n.bufStart, n.bufEnd, emuerrors.Errorf(emuerrors.OutOfBus, n.addr)})
		}
	}

	err := finish(failures)
	if err != nil {
		logger.Logf(logger.Allow, "memory", "access at %#x in space %d failed: %v", addr, id, err)
	}
	return err
}

// invoke dispatches one component access according to dir, falling back
// from MemoryPreviewer to MemoryAccessor for a preview of a component that
// doesn't implement the former.
func invoke(c component.Component, dir direction, offset uint32, space component.AddressSpaceId, buf []byte) error {
	switch dir {
	case dirWrite:
		ma, ok := c.(component.MemoryAccessor)
		if !ok {
			return emuerrors.Errorf(emuerrors.Denied, "component does not support memory writes")
		}
		return ma.WriteMemory(offset, space, buf)

	case dirPreview:
		if mp, ok := c.(component.MemoryPreviewer); ok {
			return mp.PreviewMemory(offset, space, buf)
		}
		if ma, ok := c.(component.MemoryAccessor); ok {
			return ma.ReadMemory(offset, space, buf)
		}
		return emuerrors.Errorf(emuerrors.Impossible, "component does not support memory reads")

	default:
		ma, ok := c.(component.MemoryAccessor)
		if !ok {
			return emuerrors.Errorf(emuerrors.Impossible, "component does not support memory reads")
		}
		return ma.ReadMemory(offset, space, buf)
	}
}
