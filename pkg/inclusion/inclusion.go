// Package inclusion parses caller-supplied allow-lists into a lookup set.
package inclusion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
)

// Delimiter separates members of a Delimited list.
const Delimiter = ","

// Format selects how the raw inclusion list is interpreted.
type Format int

const (
	// Delimited is a single comma-separated string.
	Delimited Format = iota
	// Vectored is an already split sequence of values.
	Vectored
)

func (f Format) String() string {
	switch f {
	case Delimited:
		return "delimited"
	case Vectored:
		return "vectored"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Set is a request-scoped set of allowed values. Membership is exact byte equality.
// A Set is populated once and then only read.
type Set struct {
	members map[string]struct{}
}

// Empty returns a set with no members; it matches nothing.
func Empty() *Set {
	return &Set{members: make(map[string]struct{})}
}

// ParseList builds a Set from raw.
//
// Delimited accepts a string or []byte and splits it on ",". Fragments are kept
// verbatim, including empty ones and the trailing fragment, so "" yields {""}.
// Vectored is recognised but not implemented and returns ErrUnsupported.
func ParseList(raw any, format Format) (*Set, error) {
	switch format {
	case Delimited:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			return nil, fmt.Errorf("delimited inclusion list must be a string, got %T: %w", raw, types.ErrInvalidArgument)
		}
		parts := strings.Split(s, Delimiter)
		set := &Set{members: make(map[string]struct{}, len(parts))}
		for _, p := range parts {
			set.members[p] = struct{}{}
		}
		return set, nil
	case Vectored:
		return nil, fmt.Errorf("%s inclusion list: %w", format, types.ErrUnsupported)
	default:
		return nil, fmt.Errorf("unknown inclusion list %s: %w", format, types.ErrInvalidArgument)
	}
}

// Contains reports whether value is a member.
func (s *Set) Contains(value []byte) bool {
	// The string conversion in a map index does not allocate.
	_, ok := s.members[string(value)]
	return ok
}

// ContainsString reports whether value is a member.
func (s *Set) ContainsString(value string) bool {
	_, ok := s.members[value]
	return ok
}

// Len returns the number of distinct members.
func (s *Set) Len() int {
	return len(s.members)
}

// Members returns the members in sorted order.
func (s *Set) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
