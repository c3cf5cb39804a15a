// Package random provides a source of pseudo-random bytes for seeding the
// uninitialised memory of newly mapped components. Real hardware powers up
// with unpredictable memory contents; components that care about this
// (rather than treating uninitialised memory as all-zero) ask this package
// for bytes instead of hand-rolling their own generator, so that the whole
// machine can be driven from a single, optionally deterministic, source.
package random

// Source supplies a value that changes over the running lifetime of the
// machine the Random is attached to. It is typically backed by the
// scheduler's notion of elapsed time, but any monotonically-varying
// counter is suitable. Two calls to Rewindable made while the Source
// reports the same value will return the same byte for the same index.
type Source interface {
	Changing() uint64
}

// Random is a deterministic, rewindable byte source. Unlike math/rand it
// does not carry internal state that advances with each call: the byte
// returned for a given index depends only on the Source's current value
// and the index itself, so a rewound machine that re-derives memory at an
// earlier point in its timeline reproduces the same bytes it produced the
// first time.
type Random struct {
	src Source

	// ZeroSeed disables the Source and seeds purely from the requested
	// index. Intended for tests that need reproducibility independent of
	// the Source's implementation.
	ZeroSeed bool
}

// NewRandom is the preferred method of initialisation for the Random type.
func NewRandom(src Source) *Random {
	return &Random{src: src}
}

// Rewindable returns the pseudo-random byte associated with index n at the
// Source's current value.
func (r *Random) Rewindable(n int) uint8 {
	var seed uint64
	if !r.ZeroSeed && r.src != nil {
		seed = r.src.Changing()
	}

	state := seed ^ (uint64(n) * 0x9e3779b97f4a7c15)
	state ^= state >> 33
	state *= 0xff51afd7ed558ccd
	state ^= state >> 33
	state *= 0xc4ceb9fe1a85ec53
	state ^= state >> 33

	return uint8(state)
}

// Seed fills buf with pseudo-random bytes starting at offset, suitable for
// priming a region of a component's uninitialised memory.
func (r *Random) Seed(buf []byte, offset int) {
	for i := range buf {
		buf[i] = r.Rewindable(offset + i)
	}
}
