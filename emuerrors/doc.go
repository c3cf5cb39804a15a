// Package emuerrors is a helper package for the plain Go language error
// type. We think of these errors as curated errors. External to this
// package, curated errors are referenced as plain errors (ie. they
// implement the error interface).
//
// Internally, errors are thought of as being composed of parts, as
// described by The Go Programming Language (Donovan, Kernighan): "When the
// error is ultimately handled by the program's main function, it should
// provide a clear causal chain from the root of the problem to the overall
// failure".
//
// The Error() function implementation for curated errors ensures that this
// chain is normalised. Specifically, that the chain does not contain
// duplicate adjacent parts. The practical advantage of this is that it
// alleviates the problem of when and how to wrap errors. For example:
//
//	func A() error {
//		err := B()
//		if err != nil {
//			return emuerrors.Errorf(emuerrors.Denied, err)
//		}
//		return nil
//	}
//
//	func B() error {
//		return emuerrors.Errorf(emuerrors.Denied, "rom is read only")
//	}
//
// produces the message "denied: rom is read only" rather than a doubled up
// "denied: denied: rom is read only".
//
// The message constants in this package mirror the error kinds of the
// framework's error handling design: Denied, OutOfBus, Impossible,
// Redirect, ComponentNotFound, ComponentUnreachable, BadVersion and
// InvalidConfig, plus the parsing errors used by the paths package.
package emuerrors
