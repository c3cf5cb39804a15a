// Package environment carries the cross-cutting context a machine and its
// components are built against: which emulation instance this is (useful
// when running more than one concurrently, such as a thumbnailer alongside
// the main emulation), its preferences, its random source, and a sink for
// notifications raised by components (a ROM requirement being satisfied, a
// snapshot completing, and so on).
package environment

import (
	"github.com/embervale/machina/prefs"
	"github.com/embervale/machina/random"
)

// Label distinguishes between concurrently running emulation instances.
type Label string

// MainEmulation is the label conventionally used for the primary,
// user-facing emulation. Auxiliary emulations (thumbnailers, rewind
// scratch instances) should use a different label so that AllowLogging
// can silence their log output.
const MainEmulation = Label("main")

// Notify receives notable events raised during emulation: a ROM
// requirement being satisfied, a snapshot being taken, a component
// refusing an access. Implementations typically surface these to a user
// interface; a nil Notify is replaced with a stub that discards events.
type Notify interface {
	Notify(event string, args ...interface{}) error
}

// Environment is passed to a MachineBuilder and threaded through to every
// component that asks for it.
type Environment struct {
	Label Label

	Notifications Notify

	Prefs *prefs.Disk

	Random *random.Random
}

// New is the preferred method of initialisation for the Environment type.
// notify and prefsDisk may be nil; a nil notify is replaced with a stub
// that discards events, a nil prefsDisk leaves Prefs unset (the builder is
// then responsible for supplying one, or doing without).
func New(label Label, src random.Source, notify Notify, prefsDisk *prefs.Disk) *Environment {
	env := &Environment{
		Label:         label,
		Notifications: notify,
		Prefs:         prefsDisk,
		Random:        random.NewRandom(src),
	}

	if notify == nil {
		env.Notifications = notificationStub{}
	}

	return env
}

// Normalise resets the environment to a known, deterministic state. Used
// by regression tests that require identical behaviour across runs.
func (env *Environment) Normalise() {
	env.Random.ZeroSeed = true
}

// IsEmulation reports whether the environment's label matches label.
func (env *Environment) IsEmulation(label Label) bool {
	return env.Label == label
}

// AllowLogging reports whether this environment is permitted to create
// new log entries. Implements logger.Permission.
func (env *Environment) AllowLogging() bool {
	return env.IsEmulation(MainEmulation)
}

type notificationStub struct{}

func (notificationStub) Notify(_ string, _ ...interface{}) error {
	return nil
}
