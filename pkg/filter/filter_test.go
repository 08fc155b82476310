package filter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/illmade-knight/go-inclusionfilter/pkg/filter"
	"github.com/illmade-knight/go-inclusionfilter/pkg/inclusion"
	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResultSet(t *testing.T, tags ...string) *resultset.Memory {
	t.Helper()
	rs := resultset.NewMemory("tag", "title")
	for i, tag := range tags {
		_, err := rs.Add(resultset.Record{"tag": tag, "title": string(rune('A' + i))})
		require.NoError(t, err)
	}
	return rs
}

func mustParse(t *testing.T, raw string) *inclusion.Set {
	t.Helper()
	set, err := inclusion.ParseList(raw, inclusion.Delimited)
	require.NoError(t, err)
	return set
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name           string
		tags           []string
		list           *inclusion.Set
		expectedTitles []string
		expectedRemove int
	}{
		{
			name:           "Removes non-members and keeps order",
			tags:           []string{"a", "x", "b"},
			list:           mustParse(t, "a,b"),
			expectedTitles: []string{"A", "C"},
			expectedRemove: 1,
		},
		{
			name:           "All members kept",
			tags:           []string{"a", "b"},
			list:           mustParse(t, "b,a,c"),
			expectedTitles: []string{"A", "B"},
			expectedRemove: 0,
		},
		{
			name:           "Empty set removes everything",
			tags:           []string{"a", "b", ""},
			list:           inclusion.Empty(),
			expectedTitles: nil,
			expectedRemove: 3,
		},
		{
			name:           "Empty member keeps empty values only",
			tags:           []string{"a", "", "b"},
			list:           mustParse(t, ""),
			expectedTitles: []string{"B"},
			expectedRemove: 2,
		},
		{
			name:           "Consecutive deletions",
			tags:           []string{"x", "y", "z", "a"},
			list:           mustParse(t, "a"),
			expectedTitles: []string{"D"},
			expectedRemove: 3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			rs := newResultSet(t, tc.tags...)

			// Act
			res, err := filter.Apply(ctx, rs, "tag", tc.list, zerolog.Nop())

			// Assert
			require.NoError(t, err)
			assert.Equal(t, filter.StateDone, res.State)
			assert.Equal(t, len(tc.tags), res.Scanned)
			assert.Equal(t, tc.expectedRemove, res.Removed)

			var titles []string
			for _, rec := range rs.Records() {
				titles = append(titles, rec["title"])
			}
			assert.Equal(t, tc.expectedTitles, titles)
		})
	}
}

func TestApply_Aborts(t *testing.T) {
	t.Run("Unknown field leaves the set untouched", func(t *testing.T) {
		// Arrange
		rs := newResultSet(t, "a", "x", "b")
		before := rs.Records()

		// Act
		res, err := filter.Apply(context.Background(), rs, "missing", mustParse(t, "a"), zerolog.Nop())

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		assert.Equal(t, filter.StateAborted, res.State)
		assert.Equal(t, 0, res.Scanned)
		assert.Equal(t, before, rs.Records())
	})

	t.Run("Cancelled context leaves the set untouched", func(t *testing.T) {
		rs := newResultSet(t, "a", "x")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := filter.Apply(ctx, rs, "tag", mustParse(t, "a"), zerolog.Nop())

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, filter.StateAborted, res.State)
		assert.Equal(t, 2, rs.Len())
	})
}

// flakyResultSet wraps a Memory set and fails reads for one record.
type flakyResultSet struct {
	*resultset.Memory
	bad resultset.RecordID
}

type flakyAccessor struct {
	resultset.Accessor
	bad resultset.RecordID
}

func (f *flakyResultSet) Accessor(field string) (resultset.Accessor, error) {
	acc, err := f.Memory.Accessor(field)
	if err != nil {
		return nil, err
	}
	return &flakyAccessor{Accessor: acc, bad: f.bad}, nil
}

func (a *flakyAccessor) Value(id resultset.RecordID) ([]byte, error) {
	if id == a.bad {
		return nil, errors.New("corrupt record")
	}
	return a.Accessor.Value(id)
}

func TestApply_ReadFailureKeepsRecordAndFinishesScan(t *testing.T) {
	// Arrange: the second record cannot be read.
	rs := &flakyResultSet{Memory: newResultSet(t, "x", "y", "z"), bad: 2}

	// Act
	res, err := filter.Apply(context.Background(), rs, "tag", mustParse(t, "a"), zerolog.Nop())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt record")
	assert.Equal(t, filter.StateDone, res.State)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Removed)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "y", rs.Records()[0]["tag"])
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "accessor_resolved", filter.StateAccessorResolved.String())
	assert.Equal(t, "aborted", filter.StateAborted.String())
	assert.Equal(t, "state(42)", filter.State(42).String())
}

func TestApply_NullIsNeverAMember(t *testing.T) {
	// Arrange: the empty fragment of "a," puts "" in the set.
	schema := arrow.NewSchema([]arrow.Field{{Name: "tag", Type: arrow.BinaryTypes.String, Nullable: true}}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"a", "", "x", ""}, []bool{true, false, true, true})
	rec := b.NewRecord()
	rs := resultset.NewArrow(rec)
	rec.Release()
	t.Cleanup(rs.Release)

	// Act
	res, err := filter.Apply(context.Background(), rs, "tag", mustParse(t, "a,"), zerolog.Nop())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, filter.StateDone, res.State)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []int{0, 3}, rs.Rows(), "The null row goes, the empty-string row stays")
}
