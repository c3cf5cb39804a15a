// Package scheduler drives every scheduler-participating component
// forward in lockstep along a shared timeline, expressed in ticks of a
// master clock whose rate is derived from the exact rational relationship
// between the frequencies of the components sharing it — so that a
// component clocked at, say, 3.58MHz and another at 1.19MHz never drift
// against one another the way they would if each were simulated against
// an independently rounded floating point rate.
package scheduler

import "math/big"

// Frequency is an exact rate, in cycles per second, expressed as a
// rational number so that relationships between frequencies (their
// ratio, their least common multiple) can be computed without rounding
// error.
type Frequency struct {
	rat *big.Rat
}

// NewFrequency builds a Frequency of num/den cycles per second.
func NewFrequency(num, den int64) Frequency {
	return Frequency{rat: big.NewRat(num, den)}
}

// Rat returns the frequency's underlying rational value.
func (f Frequency) Rat() *big.Rat {
	return f.rat
}

// Period returns the reciprocal of f: the exact duration of one cycle.
func (f Frequency) Period() Period {
	return Period{rat: new(big.Rat).Inv(f.rat)}
}

// Hz returns the frequency as a float64, for display purposes only.
func (f Frequency) Hz() float64 {
	v, _ := f.rat.Float64()
	return v
}

// Period is the exact duration, in seconds, of one cycle of some
// frequency.
type Period struct {
	rat *big.Rat
}

// NewPeriod builds a Period of num/den seconds.
func NewPeriod(num, den int64) Period {
	return Period{rat: big.NewRat(num, den)}
}

// Rat returns the period's underlying rational value.
func (p Period) Rat() *big.Rat {
	return p.rat
}

// Frequency returns the reciprocal of p.
func (p Period) Frequency() Frequency {
	return Frequency{rat: new(big.Rat).Inv(p.rat)}
}

// Seconds returns the period as a float64, for display purposes only.
func (p Period) Seconds() float64 {
	v, _ := p.rat.Float64()
	return v
}

// gcdRat returns the largest rational g such that both a and b are exact
// integer multiples of g. For two rationals a = an/ad and b = bn/bd (in
// lowest terms), this is gcd(an*bd, bn*ad) / (ad*bd).
func gcdRat(a, b *big.Rat) *big.Rat {
	an := new(big.Int).Mul(a.Num(), b.Denom())
	bn := new(big.Int).Mul(b.Num(), a.Denom())

	an.Abs(an)
	bn.Abs(bn)

	g := new(big.Int).GCD(nil, nil, an, bn)
	d := new(big.Int).Mul(a.Denom(), b.Denom())

	return new(big.Rat).SetFrac(g, d)
}

// lcmRat returns the smallest rational l such that l is an exact integer
// multiple of both a and b.
func lcmRat(a, b *big.Rat) *big.Rat {
	prod := new(big.Rat).Mul(a, b)
	g := gcdRat(a, b)
	return new(big.Rat).Quo(prod, g)
}

// MasterPeriod returns the largest period g such that every given period
// is an exact integer multiple of g. Running a scheduler's timeline in
// units of g guarantees that every participant's own tick boundaries are
// landed on exactly, with no accumulated rounding error no matter how
// long the machine runs.
func MasterPeriod(periods ...Period) Period {
	if len(periods) == 0 {
		return Period{rat: big.NewRat(0, 1)}
	}

	g := new(big.Rat).Set(periods[0].rat)
	for _, p := range periods[1:] {
		g = gcdRat(g, p.rat)
	}
	return Period{rat: g}
}

// MasterFrequencyLCM returns the smallest frequency that every given
// frequency divides evenly into — the least common multiple of the
// frequencies. Equivalent to 1/MasterPeriod when every frequency is an
// exact multiple of the same base rate.
func MasterFrequencyLCM(frequencies ...Frequency) Frequency {
	if len(frequencies) == 0 {
		return Frequency{rat: big.NewRat(0, 1)}
	}

	l := new(big.Rat).Set(frequencies[0].rat)
	for _, f := range frequencies[1:] {
		l = lcmRat(l, f.rat)
	}
	return Frequency{rat: l}
}

// Ticks returns the number of whole master periods that fit in one period
// p, rounded down. A component allocated a period of p, scheduled
// against a timeline whose master tick is master, advances by this many
// master ticks each time it is synchronized.
func Ticks(master, p Period) uint64 {
	ratio := new(big.Rat).Quo(p.rat, master.rat)
	q := new(big.Int).Quo(ratio.Num(), ratio.Denom())
	return q.Uint64()
}
