package resultset

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Record maps field names to values.
type Record map[string]string

// Memory is an in-memory ResultSet with a fixed set of columns. Records are
// visited in insertion order.
type Memory struct {
	mu      sync.RWMutex
	columns map[string]struct{}
	rows    map[RecordID]Record
	live    *roaring64.Bitmap
	nextID  RecordID
}

// NewMemory creates an empty set whose records may carry the given columns.
func NewMemory(columns ...string) *Memory {
	cols := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		cols[c] = struct{}{}
	}
	return &Memory{
		columns: cols,
		rows:    make(map[RecordID]Record),
		live:    roaring64.New(),
	}
}

// Add appends a record and returns its ID. Fields outside the column list are rejected.
func (m *Memory) Add(rec Record) (RecordID, error) {
	for field := range rec {
		if _, ok := m.columns[field]; !ok {
			return 0, unknownField(field)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	stored := make(Record, len(rec))
	for k, v := range rec {
		stored[k] = v
	}
	m.rows[id] = stored
	m.live.Add(uint64(id))
	return id, nil
}

// Len returns the number of live records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int(m.live.GetCardinality())
}

// Records returns copies of the live records in native order.
func (m *Memory) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, m.live.GetCardinality())
	it := m.live.Iterator()
	for it.HasNext() {
		row := m.rows[RecordID(it.Next())]
		cp := make(Record, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Accessor returns a reader for field.
func (m *Memory) Accessor(field string) (Accessor, error) {
	if _, ok := m.columns[field]; !ok {
		return nil, unknownField(field)
	}
	return &memoryAccessor{set: m, field: field}, nil
}

// Cursor snapshots the live IDs so deletions during the scan are safe.
func (m *Memory) Cursor() (Cursor, error) {
	m.mu.RLock()
	ids := m.live.ToArray()
	m.mu.RUnlock()
	return &memoryCursor{set: m, ids: ids, pos: -1}, nil
}

func (m *Memory) delete(id RecordID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live.CheckedRemove(uint64(id)) {
		return false
	}
	delete(m.rows, id)
	return true
}

func (m *Memory) isLive(id RecordID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live.Contains(uint64(id))
}

type memoryAccessor struct {
	set   *Memory
	field string
}

func (a *memoryAccessor) Value(id RecordID) ([]byte, error) {
	a.set.mu.RLock()
	defer a.set.mu.RUnlock()
	row, ok := a.set.rows[id]
	if !ok {
		return nil, fmt.Errorf("record %d not found", id)
	}
	// A column missing from a row reads as the empty value.
	return []byte(row[a.field]), nil
}

func (a *memoryAccessor) Close() error { return nil }

type memoryCursor struct {
	set     *Memory
	ids     []uint64
	pos     int
	current RecordID
	valid   bool
}

func (c *memoryCursor) Next() (RecordID, bool) {
	for c.pos+1 < len(c.ids) {
		c.pos++
		id := RecordID(c.ids[c.pos])
		// Records deleted by someone else after the snapshot are skipped.
		if c.set.isLive(id) {
			c.current, c.valid = id, true
			return id, true
		}
	}
	c.valid = false
	return 0, false
}

func (c *memoryCursor) Delete() error {
	if !c.valid {
		return errNoCurrent
	}
	c.valid = false
	if !c.set.delete(c.current) {
		return fmt.Errorf("record %d already deleted", c.current)
	}
	return nil
}

func (c *memoryCursor) Close() error {
	c.ids = nil
	c.valid = false
	return nil
}
