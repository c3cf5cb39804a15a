package emuerrors

// error messages. each constant is a format string suitable for Errorf.
const (
	// memory access (§4.2, §7)
	Denied   = "denied: %v"
	OutOfBus = "out of bus: %v"
	Impossible = "impossible: %v"
	Redirect   = "redirect: %v"

	// registry (§4.1, §7)
	ComponentNotFound    = "component not found: %v"
	ComponentUnreachable = "component unreachable: %v"

	// save / snapshot (§4.4, §7)
	BadVersion = "bad version: component %v wants %d, got %d"

	// builder (§4.5, §7)
	InvalidConfig = "invalid config: %v"

	// paths (§3.1)
	TooShort         = "path too short: %v"
	Whitespace       = "path contains whitespace: %v"
	InvalidCharacter = "path contains invalid character %q: %v"

	// scheduler (§4.3)
	NoAllocation  = "scheduler: component %v did not allocate any period during synchronize"
	Preempted     = "scheduler: %v"

	// prefs
	Prefs         = "prefs: %v"
	PrefsNoFile   = "prefs: no file (%s)"
	PrefsNotValid = "prefs: not a valid prefs file (%s)"

	// romreq
	RomRequestError = "rom request: %v"
)
