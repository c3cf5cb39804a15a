// Package test collects small helpers used by the framework's own
// _test.go files. It has no dependency on the rest of the module so that
// every package can import it without risk of an import cycle.
package test

import (
	"reflect"
	"testing"
)

// Equate fails the test unless a and b are equal, as judged by
// reflect.DeepEqual.
func Equate(t *testing.T, a, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
}

// ExpectEquality fails the test unless a and b are equal.
func ExpectEquality(t *testing.T, a, b interface{}) {
	t.Helper()
	Equate(t, a, b)
}

// DemandEquality fails and stops the test immediately unless a and b are
// equal. Use this instead of ExpectEquality when a later assertion in the
// same test would be meaningless (or would panic) if this one failed.
func DemandEquality(t *testing.T, a, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected %v to equal %v", a, b)
	}
}

// ExpectInequality fails the test if a and b are equal.
func ExpectInequality(t *testing.T, a, b interface{}) {
	t.Helper()
	if reflect.DeepEqual(a, b) {
		t.Errorf("expected %v to not equal %v", a, b)
	}
}

// ExpectApproximate fails the test unless a and b are within tolerance of
// one another, tolerance being a fraction of b (0.1 accepts any a within
// 10% of b).
func ExpectApproximate(t *testing.T, a, b, tolerance float64) {
	t.Helper()
	d := a - b
	if d < 0 {
		d = -d
	}
	margin := tolerance * b
	if margin < 0 {
		margin = -margin
	}
	if d > margin {
		t.Errorf("expected %v to be within %v of %v", a, margin, b)
	}
}

// result coerces a handful of common "did this succeed" shapes (bool,
// error, nil) into a single boolean, so that ExpectSuccess/ExpectFailure
// can be called with whatever the function under test naturally returns.
func result(v interface{}) bool {
	if v == nil {
		return true
	}
	switch r := v.(type) {
	case bool:
		return r
	case error:
		return r == nil
	default:
		return true
	}
}

// ExpectSuccess fails the test if v represents a failure (false, or a
// non-nil error).
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	if !result(v) {
		t.Errorf("expected success, got %v", v)
	}
}

// ExpectFailure fails the test if v represents a success (true, or a nil
// error).
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	if result(v) {
		t.Errorf("expected failure, got %v", v)
	}
}
