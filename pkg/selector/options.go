package selector

import (
	"fmt"

	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
)

// OptionIncludes is the only option name the selector recognises.
const OptionIncludes = "includes"

// OptionCursor iterates over caller-supplied named options.
type OptionCursor interface {
	Next() (key string, value any, ok bool)
	Close() error
}

// Option is one named option value.
type Option struct {
	Key   string
	Value any
}

// Options is an ordered list of options. Each call to Cursor starts a new pass.
type Options []Option

// Cursor returns a cursor over the options in order.
func (o Options) Cursor() OptionCursor {
	return &optionsCursor{opts: o}
}

type optionsCursor struct {
	opts   Options
	pos    int
	closed bool
}

func (c *optionsCursor) Next() (string, any, bool) {
	if c.closed || c.pos >= len(c.opts) {
		return "", nil, false
	}
	opt := c.opts[c.pos]
	c.pos++
	return opt.Key, opt.Value, true
}

func (c *optionsCursor) Close() error {
	c.closed = true
	return nil
}

// parsedOptions holds the recognised option values.
type parsedOptions struct {
	includes    any
	hasIncludes bool
}

// parseOptions drains cur, rejecting unknown option names. The cursor is
// always closed before returning.
func parseOptions(cur OptionCursor) (parsedOptions, error) {
	var out parsedOptions
	if cur == nil {
		return out, nil
	}
	defer func() { _ = cur.Close() }()

	for key, value, ok := cur.Next(); ok; key, value, ok = cur.Next() {
		if key != OptionIncludes {
			return parsedOptions{}, fmt.Errorf("invalid option name: <%s>: %w", key, types.ErrInvalidArgument)
		}
		out.includes = value
		out.hasIncludes = true
	}
	return out, nil
}
