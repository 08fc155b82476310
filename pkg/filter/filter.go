// Package filter removes records whose field value is not in an inclusion set.
package filter

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-inclusionfilter/pkg/inclusion"
	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/rs/zerolog"
)

// State tracks a single Apply call.
type State int

const (
	StateStart State = iota
	StateAccessorResolved
	StateScanning
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAccessorResolved:
		return "accessor_resolved"
	case StateScanning:
		return "scanning"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result summarises an Apply call.
type Result struct {
	State   State
	Scanned int
	Removed int
}

// Apply deletes, in place, every record of rs whose value for field is not a
// member of set. Records are visited once each in the set's native order.
//
// Any failure before the first deletion leaves rs untouched and the result in
// StateAborted. Once scanning has begun the scan runs to completion.
func Apply(
	ctx context.Context,
	rs resultset.ResultSet,
	field string,
	set *inclusion.Set,
	logger zerolog.Logger,
) (Result, error) {
	res := Result{State: StateStart}

	if err := ctx.Err(); err != nil {
		res.State = StateAborted
		return res, fmt.Errorf("filter not started: %w", err)
	}

	acc, err := rs.Accessor(field)
	if err != nil {
		res.State = StateAborted
		logger.Warn().Err(err).Str("field", field).Msg("Failed to open accessor, aborting filter.")
		return res, err
	}
	defer func() { _ = acc.Close() }()
	res.State = StateAccessorResolved

	cur, err := rs.Cursor()
	if err != nil {
		res.State = StateAborted
		logger.Error().Err(err).Msg("Failed to open result set cursor, aborting filter.")
		return res, fmt.Errorf("failed to open cursor: %w", err)
	}
	defer func() { _ = cur.Close() }()
	res.State = StateScanning

	// Per-record failures keep the record and are reported after the scan, so
	// every remaining record is still visited.
	var scanErrs []error
	for id, ok := cur.Next(); ok; id, ok = cur.Next() {
		res.Scanned++
		value, err := acc.Value(id)
		if errors.Is(err, resultset.ErrNull) {
			if err := cur.Delete(); err != nil {
				logger.Error().Err(err).Uint64("record_id", uint64(id)).Msg("Failed to delete record.")
				scanErrs = append(scanErrs, err)
				continue
			}
			res.Removed++
			continue
		}
		if err != nil {
			logger.Error().Err(err).Uint64("record_id", uint64(id)).Msg("Failed to read field value, keeping record.")
			scanErrs = append(scanErrs, err)
			continue
		}
		if set.Contains(value) {
			continue
		}
		if err := cur.Delete(); err != nil {
			logger.Error().Err(err).Uint64("record_id", uint64(id)).Msg("Failed to delete record.")
			scanErrs = append(scanErrs, err)
			continue
		}
		res.Removed++
	}

	res.State = StateDone
	logger.Debug().
		Str("field", field).
		Int("scanned", res.Scanned).
		Int("removed", res.Removed).
		Msg("Inclusion filter applied.")
	if len(scanErrs) > 0 {
		return res, fmt.Errorf("%d record(s) could not be filtered: %w", len(scanErrs), errors.Join(scanErrs...))
	}
	return res, nil
}
