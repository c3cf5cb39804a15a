package emuerrors

// Kind names, in words, the broad category an error belongs to.
// emuerrors.Head(err) returns an error's message constant (Denied,
// OutOfBus and so on, in messages.go), not a Kind, so callers switch on
// Head(err) against those constants rather than match the fully formatted
// message.
type Kind string

// The error kinds surfaced by the framework. Denied, OutOfBus, Impossible
// and Redirect are produced by the memory package; ComponentNotFound and
// ComponentUnreachable by the registry package; BadVersion by the save
// package; InvalidConfig by the machine package; the path parsing errors
// (TooShort, Whitespace, InvalidCharacter) by the paths package.
const (
	KindDenied               Kind = "denied"
	KindOutOfBus             Kind = "out of bus"
	KindImpossible           Kind = "impossible"
	KindRedirect             Kind = "redirect"
	KindComponentNotFound    Kind = "component not found"
	KindComponentUnreachable Kind = "component unreachable"
	KindBadVersion           Kind = "bad version"
	KindInvalidConfig        Kind = "invalid config"

	KindTooShort         Kind = "path too short"
	KindWhitespace       Kind = "path contains whitespace"
	KindInvalidCharacter Kind = "path contains invalid character"
)
