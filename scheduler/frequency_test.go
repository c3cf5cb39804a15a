package scheduler_test

import (
	"testing"

	"github.com/embervale/machina/scheduler"
	"github.com/embervale/machina/test"
)

func TestPeriodRoundTrip(t *testing.T) {
	f := scheduler.NewFrequency(315, 88) // roughly Atari colour clock, MHz units
	p := f.Period()
	back := p.Frequency()

	test.ExpectEquality(t, back.Rat().Cmp(f.Rat()), 0)
}

func TestMasterPeriodIsCommonDivisor(t *testing.T) {
	a := scheduler.NewFrequency(100, 1).Period()
	b := scheduler.NewFrequency(30, 1).Period()

	master := scheduler.MasterPeriod(a, b)

	// master should be 1/300 second: the largest period both a 100Hz and
	// a 30Hz clock divide evenly (100 and 30 have gcd 10, so the
	// combined rate is their product divided by that gcd: 300Hz).
	expect := scheduler.NewPeriod(1, 300)
	test.ExpectEquality(t, master.Rat().Cmp(expect.Rat()), 0)
}

func TestMasterFrequencyLCM(t *testing.T) {
	a := scheduler.NewFrequency(6, 1)
	b := scheduler.NewFrequency(4, 1)

	lcm := scheduler.MasterFrequencyLCM(a, b)
	expect := scheduler.NewFrequency(12, 1)

	test.ExpectEquality(t, lcm.Rat().Cmp(expect.Rat()), 0)
}

func TestTicksWholeMultiple(t *testing.T) {
	master := scheduler.NewPeriod(1, 100)
	p := scheduler.NewPeriod(1, 20)

	test.ExpectEquality(t, scheduler.Ticks(master, p), uint64(5))
}

func TestTicksSingleEmptyArgs(t *testing.T) {
	zero := scheduler.MasterPeriod()
	test.ExpectEquality(t, zero.Rat().Sign(), 0)

	zeroFreq := scheduler.MasterFrequencyLCM()
	test.ExpectEquality(t, zeroFreq.Rat().Sign(), 0)
}
