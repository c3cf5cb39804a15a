package paths_test

import (
	"testing"

	"github.com/embervale/machina/emuerrors"
	"github.com/embervale/machina/paths"
	"github.com/embervale/machina/test"
)

func TestParse(t *testing.T) {
	p, err := paths.Parse("cpu/mmu/bank0")
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, p.String(), "cpu/mmu/bank0")
	test.ExpectEquality(t, p.Len(), 3)
	test.ExpectEquality(t, p.Leaf(), "bank0")
}

func TestParseTooShort(t *testing.T) {
	_, err := paths.Parse("")
	test.ExpectFailure(t, err)
	test.ExpectSuccess(t, emuerrors.Is(err, emuerrors.TooShort))
}

func TestParseWhitespace(t *testing.T) {
	_, err := paths.Parse("cpu/mm u/bank0")
	test.ExpectFailure(t, err)
	test.ExpectSuccess(t, emuerrors.Is(err, emuerrors.Whitespace))
}

func TestParseInvalidCharacter(t *testing.T) {
	_, err := paths.Parse("cpu/mmu/bank#0")
	test.ExpectFailure(t, err)
	test.ExpectSuccess(t, emuerrors.Is(err, emuerrors.InvalidCharacter))
}

func TestPushAndParent(t *testing.T) {
	p := paths.New("cpu", "mmu")
	child := p.Push("bank0")
	test.ExpectEquality(t, child.String(), "cpu/mmu/bank0")

	parent, ok := child.Parent()
	test.ExpectSuccess(t, ok)
	test.ExpectSuccess(t, parent.Equal(p))

	_, ok = paths.New("cpu").Parent()
	test.ExpectFailure(t, ok)
}

func TestContains(t *testing.T) {
	root := paths.New("cpu")
	child := paths.New("cpu", "mmu", "bank0")

	test.ExpectSuccess(t, root.Contains(child))
	test.ExpectFailure(t, child.Contains(root))
	test.ExpectSuccess(t, child.Contains(child))
}

func TestEqual(t *testing.T) {
	a := paths.New("cpu", "mmu")
	b := paths.New("cpu", "mmu")
	c := paths.New("cpu", "mmu", "bank0")

	test.ExpectSuccess(t, a.Equal(b))
	test.ExpectFailure(t, a.Equal(c))
}
