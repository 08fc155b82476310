package resultset

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
)

// Arrow exposes the rows of an Arrow record batch as a ResultSet. The batch is
// immutable, so deletions only clear the row's bit in the live bitmap; the
// RecordID of a row is its index in the batch.
type Arrow struct {
	mu     sync.RWMutex
	record arrow.Record
	live   *roaring64.Bitmap
}

// NewArrow wraps record, taking a reference that Release gives back.
func NewArrow(record arrow.Record) *Arrow {
	record.Retain()
	live := roaring64.New()
	live.AddRange(0, uint64(record.NumRows()))
	return &Arrow{record: record, live: live}
}

// Release drops the reference taken by NewArrow.
func (a *Arrow) Release() {
	a.record.Release()
}

// Len returns the number of live rows.
func (a *Arrow) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(a.live.GetCardinality())
}

// Rows returns the indexes of the live rows in ascending order.
func (a *Arrow) Rows() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.live.ToArray()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// Accessor resolves field against the batch schema.
func (a *Arrow) Accessor(field string) (Accessor, error) {
	indices := a.record.Schema().FieldIndices(field)
	if len(indices) == 0 {
		return nil, unknownField(field)
	}
	if len(indices) > 1 {
		return nil, fmt.Errorf("field <%s> is ambiguous (%d columns): %w", field, len(indices), types.ErrInvalidArgument)
	}
	return &arrowAccessor{column: a.record.Column(indices[0]), rows: a.record.NumRows()}, nil
}

// Cursor snapshots the live rows.
func (a *Arrow) Cursor() (Cursor, error) {
	a.mu.RLock()
	ids := a.live.ToArray()
	a.mu.RUnlock()
	return &arrowCursor{set: a, ids: ids, pos: -1}, nil
}

type arrowAccessor struct {
	column arrow.Array
	rows   int64
}

func (a *arrowAccessor) Value(id RecordID) ([]byte, error) {
	row := int(id)
	if int64(row) >= a.rows {
		return nil, fmt.Errorf("row %d out of range", id)
	}
	if a.column.IsNull(row) {
		return nil, ErrNull
	}
	switch col := a.column.(type) {
	case *array.String:
		return []byte(col.Value(row)), nil
	case *array.Binary:
		return col.Value(row), nil
	default:
		return []byte(col.ValueStr(row)), nil
	}
}

func (a *arrowAccessor) Close() error { return nil }

type arrowCursor struct {
	set     *Arrow
	ids     []uint64
	pos     int
	current uint64
	valid   bool
}

func (c *arrowCursor) Next() (RecordID, bool) {
	for c.pos+1 < len(c.ids) {
		c.pos++
		id := c.ids[c.pos]
		c.set.mu.RLock()
		live := c.set.live.Contains(id)
		c.set.mu.RUnlock()
		if live {
			c.current, c.valid = id, true
			return RecordID(id), true
		}
	}
	c.valid = false
	return 0, false
}

func (c *arrowCursor) Delete() error {
	if !c.valid {
		return errNoCurrent
	}
	c.valid = false
	c.set.mu.Lock()
	defer c.set.mu.Unlock()
	if !c.set.live.CheckedRemove(c.current) {
		return fmt.Errorf("row %d already deleted", c.current)
	}
	return nil
}

func (c *arrowCursor) Close() error {
	c.ids = nil
	c.valid = false
	return nil
}
