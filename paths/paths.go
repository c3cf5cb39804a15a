// Package paths implements the addressable hierarchy used to name
// components and the resources that hang off them. A ComponentPath
// identifies a component's position in the machine's tree (for example
// "cpu/mmu/bank0"); a ResourcePath names a resource belonging to that
// component as the component's path, a colon and the resource's name (for
// example "cpu/mmu/bank0:framebuffer").
package paths

import (
	"strings"
	"unicode"

	"github.com/embervale/machina/emuerrors"
)

// Separator joins the segments of a path's string form.
const Separator = "/"

// ComponentPath is an ordered, immutable sequence of path segments.
type ComponentPath struct {
	segments []string
}

// New builds a ComponentPath directly from already-validated segments. It
// panics if any segment is empty, contains whitespace, or contains a
// character outside [A-Za-z0-9_-]; callers reading
// paths from outside the program should use Parse instead.
func New(segments ...string) ComponentPath {
	for _, s := range segments {
		if err := validateSegment(s); err != nil {
			panic(err)
		}
	}
	cp := make([]string, len(segments))
	copy(cp, segments)
	return ComponentPath{segments: cp}
}

// Parse splits s on Separator and validates the result, returning a
// TooShort error if s is empty, a Whitespace error if any segment
// contains whitespace, and an InvalidCharacter error if any segment
// contains a character outside [A-Za-z0-9_-].
func Parse(s string) (ComponentPath, error) {
	s = strings.Trim(s, Separator)
	if s == "" {
		return ComponentPath{}, emuerrors.Errorf(emuerrors.TooShort, s)
	}

	segments := strings.Split(s, Separator)
	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return ComponentPath{}, err
		}
	}

	return ComponentPath{segments: segments}, nil
}

func validateSegment(s string) error {
	if s == "" {
		return emuerrors.Errorf(emuerrors.TooShort, s)
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			return emuerrors.Errorf(emuerrors.Whitespace, s)
		}
		if !isValidRune(r) {
			return emuerrors.Errorf(emuerrors.InvalidCharacter, r, s)
		}
	}
	return nil
}

func isValidRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// String returns the path's canonical, Separator-joined form.
func (p ComponentPath) String() string {
	return strings.Join(p.segments, Separator)
}

// Len returns the number of segments in the path.
func (p ComponentPath) Len() int {
	return len(p.segments)
}

// Segment returns the segment at index i.
func (p ComponentPath) Segment(i int) string {
	return p.segments[i]
}

// Leaf returns the path's final segment, which is conventionally the
// component or resource's own name.
func (p ComponentPath) Leaf() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Push returns a new path with segment appended. The receiver is
// unmodified.
func (p ComponentPath) Push(segment string) ComponentPath {
	segments := make([]string, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	segments = append(segments, segment)
	return ComponentPath{segments: segments}
}

// Parent returns the path with its final segment removed, and false if p
// has no parent (is already a single segment or empty).
func (p ComponentPath) Parent() (ComponentPath, bool) {
	if len(p.segments) <= 1 {
		return ComponentPath{}, false
	}
	segments := make([]string, len(p.segments)-1)
	copy(segments, p.segments[:len(p.segments)-1])
	return ComponentPath{segments: segments}, true
}

// Contains reports whether p is other, or an ancestor of other.
func (p ComponentPath) Contains(other ComponentPath) bool {
	if len(p.segments) > len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// Equal reports whether p and other name the same path.
func (p ComponentPath) Equal(other ComponentPath) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// IsZero reports whether p is the zero-value ComponentPath.
func (p ComponentPath) IsZero() bool {
	return len(p.segments) == 0
}

// ResourceSeparator joins a ResourcePath's owning ComponentPath from its
// resource name.
const ResourceSeparator = ":"

// ResourcePath names a resource owned by a specific component — one of
// its displays, audio outputs or gamepads — as "<ComponentPath>:<name>".
// Two components may each expose a resource of the same name without
// colliding, since the owning path disambiguates them.
type ResourcePath struct {
	owner ComponentPath
	name  string
}

// NewResourcePath builds a ResourcePath directly from an already-validated
// owner and name. It panics if name fails the same validation Parse
// applies.
func NewResourcePath(owner ComponentPath, name string) ResourcePath {
	if err := validateSegment(name); err != nil {
		panic(err)
	}
	return ResourcePath{owner: owner, name: name}
}

// ParseResourcePath splits s on the last ResourceSeparator into an owning
// ComponentPath and a resource name, applying the same validation Parse
// does to both. It returns a TooShort error if s has no separator or an
// empty owner/name, a Whitespace error if either half contains
// whitespace, and an InvalidCharacter error if either half contains a
// character outside the path grammar.
func ParseResourcePath(s string) (ResourcePath, error) {
	i := strings.LastIndex(s, ResourceSeparator)
	if i < 0 || i == len(s)-1 {
		return ResourcePath{}, emuerrors.Errorf(emuerrors.TooShort, s)
	}

	owner, err := Parse(s[:i])
	if err != nil {
		return ResourcePath{}, err
	}

	name := s[i+1:]
	if err := validateSegment(name); err != nil {
		return ResourcePath{}, err
	}

	return ResourcePath{owner: owner, name: name}, nil
}

// Owner returns the ComponentPath of the component that owns this
// resource.
func (rp ResourcePath) Owner() ComponentPath {
	return rp.owner
}

// Name returns the resource's name, unique among resources owned by the
// same component.
func (rp ResourcePath) Name() string {
	return rp.name
}

// String returns the resource path's canonical "<owner>:<name>" form.
func (rp ResourcePath) String() string {
	return rp.owner.String() + ResourceSeparator + rp.name
}

// Equal reports whether rp and other name the same resource.
func (rp ResourcePath) Equal(other ResourcePath) bool {
	return rp.owner.Equal(other.owner) && rp.name == other.name
}
