package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/value"
)

func TestWrap(t *testing.T) {
	seq := value.Sequence{value.IntValue(1)}
	assert.Equal(t, seq, Wrap(seq))

	m := value.NewMapping().Set("a", value.IntValue(1))
	assert.Equal(t, value.Sequence{m}, Wrap(m))
}

func TestTreeToRows(t *testing.T) {
	tree := value.Sequence{
		value.NewMapping().
			Set("user", value.NewMapping().Set("name", value.StringValue("Ada")).Set("age", value.IntValue(36))).
			Set("langs", value.Sequence{value.StringValue("en"), value.StringValue("fr")}),
		value.StringValue("loose"),
	}

	rows, err := TreeToRows(tree)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"user.name", "user.age", "langs.0", "langs.1"}, rows[0].Fields())
	lang, _ := rows[0].Get("langs.1")
	assert.Equal(t, value.StringValue("fr"), lang)

	assert.Equal(t, []string{ScalarField}, rows[1].Fields())
}

func TestTreeToRowsRequiresSequence(t *testing.T) {
	_, err := TreeToRows(value.NewMapping())
	require.Error(t, err)
	assert.True(t, errors.IsEncoding(err))
	assert.Equal(t, "EncodingError: "+ReasonUnsupportedShape, err.Error())

	_, err = TreeToRows(nil)
	require.Error(t, err)
}

func TestRowsToTree(t *testing.T) {
	rows := value.RowSet{
		value.NewRow().Set("user.name", value.StringValue("Ada")).Set("user.age", value.IntValue(36)),
	}

	want := value.Sequence{
		value.NewMapping().Set("user", value.NewMapping().
			Set("name", value.StringValue("Ada")).
			Set("age", value.IntValue(36))),
	}
	assert.True(t, value.Equal(want, RowsToTree(rows)))
}

func TestRowsToTreeCollisionLastWriteWins(t *testing.T) {
	rows := value.RowSet{
		value.NewRow().Set("a", value.IntValue(1)).Set("a.b", value.IntValue(2)),
		value.NewRow().Set("a.b", value.IntValue(2)).Set("a", value.IntValue(1)),
	}

	tree := RowsToTree(rows)
	require.Len(t, tree, 2)
	assert.True(t, value.Equal(
		value.NewMapping().Set("a", value.NewMapping().Set("b", value.IntValue(2))), tree[0]))
	assert.True(t, value.Equal(
		value.NewMapping().Set("a", value.IntValue(1)), tree[1]))
}

func TestRoundTrip(t *testing.T) {
	values := []value.Value{
		value.NewMapping().
			Set("id", value.IntValue(7)).
			Set("profile", value.NewMapping().
				Set("name", value.StringValue("Grace")).
				Set("active", value.BoolValue(true)).
				Set("manager", value.NullValue())).
			Set("scores", value.Sequence{value.IntValue(1), value.IntValue(2)}),
		value.Sequence{
			value.NewMapping().Set("name", value.StringValue("Ada")),
			value.NewMapping().Set("matrix", value.Sequence{
				value.Sequence{value.IntValue(1)},
				value.Sequence{value.IntValue(2), value.IntValue(3)},
			}),
		},
	}

	for _, v := range values {
		rows, err := TreeToRows(Wrap(v))
		require.NoError(t, err)
		assert.True(t, value.Equal(Wrap(v), RowsToTree(rows)), "got %#v", RowsToTree(rows))
	}
}
