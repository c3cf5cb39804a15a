package resources_test

import (
	"testing"

	"github.com/embervale/machina/resources"
	"github.com/embervale/machina/test"
)

func TestJoinPath(t *testing.T) {
	pth, err := resources.JoinPath("foo/bar", "baz")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".machina/foo/bar/baz")

	pth, err = resources.JoinPath("foo", "bar", "baz")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".machina/foo/bar/baz")

	pth, err = resources.JoinPath("foo/bar", "")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".machina/foo/bar")

	pth, err = resources.JoinPath("", "baz")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".machina/baz")

	pth, err = resources.JoinPath("", "")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".machina")
}
