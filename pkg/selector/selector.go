// Package selector adapts the keyed cache and the inclusion filter to the host's
// selector calling convention.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-inclusionfilter/pkg/cache"
	"github.com/illmade-knight/go-inclusionfilter/pkg/filter"
	"github.com/illmade-knight/go-inclusionfilter/pkg/inclusion"
	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/rs/zerolog"
)

// Name is the name the selector is registered under.
const Name = "sample_selector"

// Args are the positional arguments of a call: the field name, then an
// optional OptionCursor (or Options).
type Args []any

// Func is the callable form registered with the host.
type Func func(ctx context.Context, args Args, rs resultset.ResultSet) error

// KeyFunc derives the cache key for a call.
type KeyFunc func() string

// RandomBucket picks one of ten buckets, "0" to "9".
func RandomBucket() string {
	return strconv.Itoa(rand.IntN(10))
}

// Recorder receives per-call outcomes. Implementations must be safe for concurrent use.
type Recorder interface {
	SelectDone(code types.ErrorCode, elapsed time.Duration)
	RecordsFiltered(scanned, removed int)
}

type nopRecorder struct{}

func (nopRecorder) SelectDone(types.ErrorCode, time.Duration) {}
func (nopRecorder) RecordsFiltered(int, int)                  {}

// Config holds the pluggable behaviour of a Selector.
type Config struct {
	// KeyFunc defaults to RandomBucket.
	KeyFunc KeyFunc
	// Delay defaults to NoDelay.
	Delay Delay
}

// Selector filters a result set against the "includes" option after touching the cache.
type Selector struct {
	cache    *cache.KeyedCache
	keyFunc  KeyFunc
	delay    Delay
	recorder Recorder
	logger   zerolog.Logger
}

// NewSelector creates a Selector bound to a cache. The recorder may be nil.
func NewSelector(cfg Config, c *cache.KeyedCache, recorder Recorder, logger zerolog.Logger) (*Selector, error) {
	if c == nil {
		return nil, errors.New("keyed cache cannot be nil")
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RandomBucket
	}
	if cfg.Delay == nil {
		cfg.Delay = NoDelay{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Selector{
		cache:    c,
		keyFunc:  cfg.KeyFunc,
		delay:    cfg.Delay,
		recorder: recorder,
		logger:   logger.With().Str("component", "Selector").Logger(),
	}, nil
}

// Func returns s.Select as a registrable Func.
func (s *Selector) Func() Func {
	return s.Select
}

// Select validates args, consults the cache, waits on the delay hook and then
// removes from rs every record whose field value is not in the includes list.
// Argument and option errors are reported before the cache or rs is touched.
func (s *Selector) Select(ctx context.Context, args Args, rs resultset.ResultSet) (err error) {
	start := time.Now()
	logger := s.logger.With().Str("request_id", uuid.NewString()).Logger()
	defer func() {
		code := types.Code(err)
		s.recorder.SelectDone(code, time.Since(start))
		if err != nil {
			logger.Warn().Err(err).Str("code", code.String()).Msg("Selector call failed.")
		}
	}()

	field, optCur, err := parseArgs(args)
	if err != nil {
		return err
	}
	opts, err := parseOptions(optCur)
	if err != nil {
		return fmt.Errorf("%s(): %w", Name, err)
	}
	set, err := inclusionSet(opts, logger)
	if err != nil {
		return fmt.Errorf("%s(): %w", Name, err)
	}

	key := s.keyFunc()
	entry, err := s.cache.GetOrCreate(ctx, key)
	if err != nil {
		return fmt.Errorf("%s(): cache lookup for key '%s': %w", Name, key, err)
	}
	logger.Debug().Str("key", key).Uint64("entry_id", entry.ID).Float64("value", entry.Value).Msg("Cache consulted.")

	if err := s.delay.Wait(ctx); err != nil {
		return fmt.Errorf("%s(): delay interrupted: %w", Name, err)
	}

	res, err := filter.Apply(ctx, rs, field, set, logger)
	s.recorder.RecordsFiltered(res.Scanned, res.Removed)
	if err != nil {
		return fmt.Errorf("%s(): %w", Name, err)
	}
	return nil
}

// parseArgs checks the argument count and types.
func parseArgs(args Args) (string, OptionCursor, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", nil, fmt.Errorf("%s(): wrong number of arguments (%d for 1..2): %w", Name, len(args), types.ErrInvalidArgument)
	}
	field, ok := args[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("%s(): field name must be a string, got %T: %w", Name, args[0], types.ErrInvalidArgument)
	}
	if len(args) == 1 || args[1] == nil {
		return field, nil, nil
	}
	switch opts := args[1].(type) {
	case OptionCursor:
		return field, opts, nil
	case Options:
		return field, opts.Cursor(), nil
	default:
		return "", nil, fmt.Errorf("%s(): options must be a key/value list, got %T: %w", Name, args[1], types.ErrInvalidArgument)
	}
}

// inclusionSet builds the lookup set. A missing includes option yields the empty
// set, which removes every record.
func inclusionSet(opts parsedOptions, logger zerolog.Logger) (*inclusion.Set, error) {
	if !opts.hasIncludes {
		logger.Warn().Msg("No includes option supplied, every record will be removed.")
		return inclusion.Empty(), nil
	}
	format := inclusion.Delimited
	if _, ok := opts.includes.([]string); ok {
		format = inclusion.Vectored
	}
	return inclusion.ParseList(opts.includes, format)
}
