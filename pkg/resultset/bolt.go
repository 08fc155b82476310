package resultset

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltConfig configures a bbolt backed ResultSet.
type BoltConfig struct {
	// Bucket is the name of the Bolt bucket holding the records.
	Bucket string
	// Columns lists the fields records may carry.
	Columns []string
}

var errBucketMissing = errors.New("resultset: bucket missing")

// Bolt persists records in a bbolt bucket, keyed by big-endian sequence numbers
// so that native order is insertion order.
type Bolt struct {
	db      *bolt.DB
	bucket  []byte
	columns map[string]struct{}
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string, cfg BoltConfig) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}
	bucket := []byte("records")
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	cols := make(map[string]struct{}, len(cfg.Columns))
	for _, c := range cfg.Columns {
		cols[c] = struct{}{}
	}
	return &Bolt{db: db, bucket: bucket, columns: cols}, nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Add stores rec and returns its ID.
func (b *Bolt) Add(rec Record) (RecordID, error) {
	for field := range rec {
		if _, ok := b.columns[field]; !ok {
			return 0, unknownField(field)
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}
	var id RecordID
	err = b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return errBucketMissing
		}
		seq, err := bk.NextSequence()
		if err != nil {
			return err
		}
		id = RecordID(seq)
		return bk.Put(encodeID(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Len returns the number of stored records, or zero if the bucket cannot be read.
func (b *Bolt) Len() int {
	n := 0
	_ = b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return errBucketMissing
		}
		n = bk.Stats().KeyN
		return nil
	})
	return n
}

// Records returns the stored records in native order.
func (b *Bolt) Records() ([]Record, error) {
	var out []Record
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return errBucketMissing
		}
		return bk.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

// Accessor returns a reader for field.
func (b *Bolt) Accessor(field string) (Accessor, error) {
	if _, ok := b.columns[field]; !ok {
		return nil, unknownField(field)
	}
	return &boltAccessor{set: b, field: field}, nil
}

// Cursor snapshots the keys in a read transaction. Each Delete runs in its own
// update transaction, so the scan never holds a write lock on the database.
func (b *Bolt) Cursor() (Cursor, error) {
	var ids []RecordID
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return errBucketMissing
		}
		c := bk.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, decodeID(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor: %w", err)
	}
	return &boltCursor{set: b, ids: ids, pos: -1}, nil
}

type boltAccessor struct {
	set   *Bolt
	field string
}

func (a *boltAccessor) Value(id RecordID) ([]byte, error) {
	var out []byte
	err := a.set.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(a.set.bucket)
		if bk == nil {
			return errBucketMissing
		}
		v := bk.Get(encodeID(id))
		if v == nil {
			return fmt.Errorf("record %d not found", id)
		}
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal record %d: %w", id, err)
		}
		out = []byte(rec[a.field])
		return nil
	})
	return out, err
}

func (a *boltAccessor) Close() error { return nil }

type boltCursor struct {
	set     *Bolt
	ids     []RecordID
	pos     int
	current RecordID
	valid   bool
}

func (c *boltCursor) Next() (RecordID, bool) {
	for c.pos+1 < len(c.ids) {
		c.pos++
		id := c.ids[c.pos]
		exists := false
		_ = c.set.db.View(func(tx *bolt.Tx) error {
			if bk := tx.Bucket(c.set.bucket); bk != nil {
				exists = bk.Get(encodeID(id)) != nil
			}
			return nil
		})
		if exists {
			c.current, c.valid = id, true
			return id, true
		}
	}
	c.valid = false
	return 0, false
}

func (c *boltCursor) Delete() error {
	if !c.valid {
		return errNoCurrent
	}
	c.valid = false
	return c.set.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(c.set.bucket)
		if bk == nil {
			return errBucketMissing
		}
		return bk.Delete(encodeID(c.current))
	})
}

func (c *boltCursor) Close() error {
	c.ids = nil
	c.valid = false
	return nil
}

func encodeID(id RecordID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(k []byte) RecordID {
	return RecordID(binary.BigEndian.Uint64(k))
}
