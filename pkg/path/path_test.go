package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

func TestFlatten(t *testing.T) {
	v := value.NewMapping().
		Set("user", value.NewMapping().
			Set("name", value.StringValue("Ada")).
			Set("age", value.IntValue(36))).
		Set("tags", value.Sequence{value.StringValue("math"), value.StringValue("engines")}).
		Set("active", value.BoolValue(true))

	got := Flatten(v)

	want := []Entry{
		{Path: "user.name", Scalar: value.StringValue("Ada")},
		{Path: "user.age", Scalar: value.IntValue(36)},
		{Path: "tags.0", Scalar: value.StringValue("math")},
		{Path: "tags.1", Scalar: value.StringValue("engines")},
		{Path: "active", Scalar: value.BoolValue(true)},
	}
	assert.Equal(t, want, got)
}

func TestFlattenScalarAndEmpty(t *testing.T) {
	assert.Equal(t, []Entry{{Path: "", Scalar: value.IntValue(1)}}, Flatten(value.IntValue(1)))
	assert.Empty(t, Flatten(value.NewMapping()))
	assert.Empty(t, Flatten(value.Sequence{}))
}

func TestAssignCreatesIntermediates(t *testing.T) {
	root := value.NewMapping()
	Assign(root, "user.name", value.StringValue("Ada"))
	Assign(root, "user.age", value.IntValue(36))

	want := value.NewMapping().
		Set("user", value.NewMapping().
			Set("name", value.StringValue("Ada")).
			Set("age", value.IntValue(36)))
	assert.True(t, value.Equal(want, root), "got %#v", root)
}

func TestAssignLastWriteWins(t *testing.T) {
	t.Run("scalar replaced by mapping", func(t *testing.T) {
		root := value.NewMapping()
		Assign(root, "a.b", value.IntValue(1))
		Assign(root, "a.b.c", value.IntValue(2))

		a, ok := root.Get("a")
		require.True(t, ok)
		b, ok := a.(*value.Mapping).Get("b")
		require.True(t, ok)
		c, ok := b.(*value.Mapping).Get("c")
		require.True(t, ok)
		assert.Equal(t, value.IntValue(2), c)
	})

	t.Run("mapping replaced by scalar", func(t *testing.T) {
		root := value.NewMapping()
		Assign(root, "a.b.c", value.IntValue(2))
		Assign(root, "a.b", value.IntValue(1))

		a, _ := root.Get("a")
		b, _ := a.(*value.Mapping).Get("b")
		assert.Equal(t, value.IntValue(1), b)
	})
}

func TestCompact(t *testing.T) {
	root := value.NewMapping()
	Assign(root, "tags.0", value.StringValue("x"))
	Assign(root, "tags.1", value.StringValue("y"))
	Assign(root, "odd.1", value.StringValue("z"))

	got := Compact(root)

	want := value.NewMapping().
		Set("tags", value.Sequence{value.StringValue("x"), value.StringValue("y")}).
		Set("odd", value.NewMapping().Set("1", value.StringValue("z")))
	assert.True(t, value.Equal(want, got), "got %#v", got)
}

func TestNestCompactsOnlyCreatedMappings(t *testing.T) {
	scores := value.NewMapping().
		Set("0", value.StringValue("a")).
		Set("1", value.StringValue("b"))
	m := value.NewMapping().
		Set("scores", scores).
		Set("tags.0", value.StringValue("x")).
		Set("tags.1", value.StringValue("y")).
		Set("user.name", value.StringValue("Ada"))

	got := Nest(m)

	want := value.NewMapping().
		Set("scores", value.NewMapping().
			Set("0", value.StringValue("a")).
			Set("1", value.StringValue("b"))).
		Set("tags", value.Sequence{value.StringValue("x"), value.StringValue("y")}).
		Set("user", value.NewMapping().Set("name", value.StringValue("Ada")))
	assert.True(t, value.Equal(want, got), "got %#v", got)
}

func TestNestInsideExistingMapping(t *testing.T) {
	m := value.NewMapping().
		Set("user", value.NewMapping().Set("name", value.StringValue("Ada"))).
		Set("user.langs.0", value.StringValue("en"))

	got := Nest(m)

	user, ok := got.Get("user")
	require.True(t, ok)
	langs, ok := user.(*value.Mapping).Get("langs")
	require.True(t, ok)
	assert.Equal(t, value.Sequence{value.StringValue("en")}, langs)
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	values := []value.Value{
		value.NewMapping().Set("a", value.IntValue(1)),
		value.NewMapping().
			Set("user", value.NewMapping().
				Set("name", value.StringValue("Ada")).
				Set("langs", value.Sequence{
					value.NewMapping().Set("name", value.StringValue("Analytical")),
					value.NewMapping().Set("name", value.StringValue("Notes")),
				})).
			Set("nothing", value.NullValue()),
	}

	for _, v := range values {
		got := Unflatten(Flatten(v))
		assert.True(t, value.Equal(v, got), "round trip changed %#v into %#v", v, got)
	}
}

func TestJoinAndSplit(t *testing.T) {
	assert.Equal(t, "a.b.c", Join("a", "", "b", "c"))
	assert.Equal(t, []string{"a", "b"}, Split("a.b"))
	assert.Equal(t, []string{"a"}, Split("a"))
}
