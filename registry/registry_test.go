package registry_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/registry"
	"github.com/embervale/machina/scheduler"
	"github.com/embervale/machina/test"
)

type stub struct {
	path    paths.ComponentPath
	resets  int
	touches int
}

func (s *stub) Path() paths.ComponentPath { return s.path }
func (s *stub) Reset()                    { s.resets++ }

func TestRegisterAndLookup(t *testing.T) {
	r := registry.New()

	c := &stub{path: paths.New("cpu")}
	id, err := r.Register(c.path, c, false)
	test.ExpectSuccess(t, err)

	got, ok := r.Lookup(c.path)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, got, id)

	component, ok := r.Get(id)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, component, c)
}

func TestRegisterDuplicatePath(t *testing.T) {
	r := registry.New()

	a := &stub{path: paths.New("cpu")}
	b := &stub{path: paths.New("cpu")}

	_, err := r.Register(a.path, a, false)
	test.ExpectSuccess(t, err)

	_, err = r.Register(b.path, b, false)
	test.ExpectFailure(t, err)
}

func TestGetUnknown(t *testing.T) {
	r := registry.New()
	_, ok := r.Get(component.Id(99))
	test.ExpectFailure(t, ok)
}

func TestInteractShared(t *testing.T) {
	r := registry.New()
	c := &stub{path: paths.New("cpu")}
	id, err := r.Register(c.path, c, false)
	test.ExpectSuccess(t, err)

	err = r.Interact(id, func(comp component.Component) {
		comp.(*stub).touches++
	})
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, c.touches, 1)
}

func TestInteractUnknown(t *testing.T) {
	r := registry.New()
	err := r.Interact(component.Id(42), func(component.Component) {})
	test.ExpectFailure(t, err)
}

func TestInteractPinnedMarshalsThroughDrain(t *testing.T) {
	r := registry.New()
	c := &stub{path: paths.New("audio")}
	id, err := r.Register(c.path, c, true)
	test.ExpectSuccess(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := r.Interact(id, func(comp component.Component) {
			comp.(*stub).touches++
		})
		test.ExpectSuccess(t, err)
	}()

	// give the goroutine a chance to enqueue its interaction, then drain
	// it from what becomes the main thread.
	for i := 0; i < 1000 && c.touches == 0; i++ {
		r.Drain()
	}
	wg.Wait()

	test.ExpectEquality(t, c.touches, 1)
}

func TestResetAll(t *testing.T) {
	r := registry.New()
	a := &stub{path: paths.New("cpu")}
	b := &stub{path: paths.New("mmu")}
	_, err := r.Register(a.path, a, false)
	test.ExpectSuccess(t, err)
	_, err = r.Register(b.path, b, false)
	test.ExpectSuccess(t, err)

	r.Reset()

	test.ExpectEquality(t, a.resets, 1)
	test.ExpectEquality(t, b.resets, 1)
}

type fixedClock struct{ now scheduler.Timestamp }

func (c fixedClock) Now() scheduler.Timestamp { return c.now }

// laggard is an OnDemandComponent that tracks how far it has been driven,
// one tick per Synchronize call, so a test can verify Interact drives it
// all the way to the registry's clock before handing it over.
type laggard struct {
	path    paths.ComponentPath
	at      scheduler.Timestamp
	touches int
}

func (l *laggard) Path() paths.ComponentPath { return l.path }
func (l *laggard) Reset()                    {}
func (l *laggard) NeedsWork(now scheduler.Timestamp) bool {
	return l.at < now
}
func (l *laggard) Synchronize(ctx *scheduler.SynchronizationContext) {
	l.at++
	ctx.AllocatePeriod(1)
}

func TestInteractCatchesUpOnDemandComponent(t *testing.T) {
	r := registry.New()
	l := &laggard{path: paths.New("ppu")}
	id, err := r.Register(l.path, l, false)
	test.ExpectSuccess(t, err)

	r.SetClock(fixedClock{now: scheduler.Timestamp(5)})

	err = r.Interact(id, func(comp component.Component) {
		l.touches++
	})
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, l.at, scheduler.Timestamp(5))
	test.ExpectEquality(t, l.touches, 1)
}

func TestInteractWithoutClockSkipsCatchUp(t *testing.T) {
	r := registry.New()
	l := &laggard{path: paths.New("ppu")}
	id, err := r.Register(l.path, l, false)
	test.ExpectSuccess(t, err)

	err = r.Interact(id, func(component.Component) {})
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, l.at, scheduler.Timestamp(0))
}

func TestTypedHandle(t *testing.T) {
	r := registry.New()
	c := &stub{path: paths.New("cpu")}
	_, err := r.Register(c.path, c, false)
	test.ExpectSuccess(t, err)

	h, err := registry.TypedHandleFor[*stub](r, c.path)
	test.ExpectSuccess(t, err)

	err = h.Interact(func(s *stub) { s.touches++ })
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, c.touches, 1)
}

func TestTypedHandleWrongTypeFails(t *testing.T) {
	r := registry.New()
	c := &stub{path: paths.New("cpu")}
	_, err := r.Register(c.path, c, false)
	test.ExpectSuccess(t, err)

	type other struct{ *stub }
	_, err = registry.TypedHandleFor[*other](r, c.path)
	test.ExpectFailure(t, err)
}

func TestTypedHandleUnknownPath(t *testing.T) {
	r := registry.New()
	_, err := registry.TypedHandleFor[*stub](r, paths.New("missing"))
	test.ExpectFailure(t, err)
}

func TestWriteGraph(t *testing.T) {
	r := registry.New()
	c := &stub{path: paths.New("cpu")}
	_, err := r.Register(c.path, c, false)
	test.ExpectSuccess(t, err)

	var buf bytes.Buffer
	r.WriteGraph(&buf)
	test.ExpectSuccess(t, buf.Len() > 0)
}
