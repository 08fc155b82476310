package resultset_test

import (
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture builds a ResultSet holding one "tag" value per record, in order.
type fixture struct {
	name  string
	build func(t *testing.T, tags []string) (resultset.ResultSet, func() []string)
}

func fixtures() []fixture {
	return []fixture{
		{name: "Memory", build: buildMemory},
		{name: "Arrow", build: buildArrow},
		{name: "Bolt", build: buildBolt},
	}
}

func buildMemory(t *testing.T, tags []string) (resultset.ResultSet, func() []string) {
	t.Helper()
	rs := resultset.NewMemory("tag", "title")
	for _, tag := range tags {
		_, err := rs.Add(resultset.Record{"tag": tag, "title": "doc-" + tag})
		require.NoError(t, err)
	}
	return rs, func() []string {
		var out []string
		for _, rec := range rs.Records() {
			out = append(out, rec["tag"])
		}
		return out
	}
}

func buildArrow(t *testing.T, tags []string) (resultset.ResultSet, func() []string) {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "tag", Type: arrow.BinaryTypes.String},
		{Name: "score", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	for i, tag := range tags {
		b.Field(0).(*array.StringBuilder).Append(tag)
		b.Field(1).(*array.Int32Builder).Append(int32(i))
	}
	rec := b.NewRecord()
	rs := resultset.NewArrow(rec)
	rec.Release()
	t.Cleanup(rs.Release)

	return rs, func() []string {
		var out []string
		for _, row := range rs.Rows() {
			out = append(out, tags[row])
		}
		return out
	}
}

func buildBolt(t *testing.T, tags []string) (resultset.ResultSet, func() []string) {
	t.Helper()
	rs, err := resultset.OpenBolt(filepath.Join(t.TempDir(), "records.db"), resultset.BoltConfig{Columns: []string{"tag"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	for _, tag := range tags {
		_, err := rs.Add(resultset.Record{"tag": tag})
		require.NoError(t, err)
	}
	return rs, func() []string {
		recs, err := rs.Records()
		require.NoError(t, err)
		var out []string
		for _, rec := range recs {
			out = append(out, rec["tag"])
		}
		return out
	}
}

func TestResultSets_CursorDeleteDoesNotSkip(t *testing.T) {
	for _, fx := range fixtures() {
		t.Run(fx.name, func(t *testing.T) {
			// Arrange: delete every record we visit that has an even position.
			tags := []string{"a", "b", "c", "d", "e"}
			rs, remaining := fx.build(t, tags)
			acc, err := rs.Accessor("tag")
			require.NoError(t, err)
			defer acc.Close()
			cur, err := rs.Cursor()
			require.NoError(t, err)
			defer cur.Close()

			// Act
			var visited []string
			i := 0
			for id, ok := cur.Next(); ok; id, ok = cur.Next() {
				v, err := acc.Value(id)
				require.NoError(t, err)
				visited = append(visited, string(v))
				if i%2 == 0 {
					require.NoError(t, cur.Delete())
				}
				i++
			}

			// Assert
			assert.Equal(t, tags, visited, "Every record should be visited exactly once, in order")
			assert.Equal(t, []string{"b", "d"}, remaining())
			assert.Equal(t, 2, rs.Len())
		})
	}
}

func TestResultSets_UnknownField(t *testing.T) {
	for _, fx := range fixtures() {
		t.Run(fx.name, func(t *testing.T) {
			rs, _ := fx.build(t, []string{"a"})
			_, err := rs.Accessor("nope")
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
			assert.Contains(t, err.Error(), "<nope>")
		})
	}
}

func TestResultSets_DeleteWithoutCurrent(t *testing.T) {
	for _, fx := range fixtures() {
		t.Run(fx.name, func(t *testing.T) {
			rs, _ := fx.build(t, []string{"a"})
			cur, err := rs.Cursor()
			require.NoError(t, err)
			defer cur.Close()

			assert.Error(t, cur.Delete(), "Delete before Next has no current record")

			_, ok := cur.Next()
			require.True(t, ok)
			require.NoError(t, cur.Delete())
			assert.Error(t, cur.Delete(), "The same record cannot be deleted twice")
		})
	}
}

func TestMemory_AddRejectsUnknownColumn(t *testing.T) {
	rs := resultset.NewMemory("tag")
	_, err := rs.Add(resultset.Record{"other": "x"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Equal(t, 0, rs.Len())
}

func TestArrow_NonStringColumns(t *testing.T) {
	rs, _ := buildArrow(t, []string{"a", "b"})
	acc, err := rs.Accessor("score")
	require.NoError(t, err)

	v, err := acc.Value(1)
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	_, err = acc.Value(5)
	assert.Error(t, err)
}

func TestArrow_NullReadsAsErrNull(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "tag", Type: arrow.BinaryTypes.String, Nullable: true}}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"a", "", ""}, []bool{true, false, true})
	rec := b.NewRecord()
	rs := resultset.NewArrow(rec)
	rec.Release()
	t.Cleanup(rs.Release)

	acc, err := rs.Accessor("tag")
	require.NoError(t, err)

	_, err = acc.Value(1)
	assert.ErrorIs(t, err, resultset.ErrNull)

	v, err := acc.Value(2)
	require.NoError(t, err, "An empty string is a value, not a null")
	assert.Equal(t, "", string(v))
}
