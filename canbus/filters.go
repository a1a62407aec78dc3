package canbus

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame filters used by Mux subscribers and LoggedBus.

// ByID matches one identifier.
func ByID(id uint32) FrameFilter {
	return func(f Frame) bool { return f.ID == id }
}

// ByIDs matches any of ids.
func ByIDs(ids ...uint32) FrameFilter {
	m := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return func(f Frame) bool {
		_, ok := m[f.ID]
		return ok
	}
}

// ByBus matches frames seen on, or addressed to, one bus segment.
func ByBus(bus int) FrameFilter {
	return func(f Frame) bool { return f.Bus == bus }
}

// ByRange matches identifiers in [lo, hi]. The bounds may be given in either
// order.
func ByRange(lo, hi uint32) FrameFilter {
	if hi < lo {
		lo, hi = hi, lo
	}
	return func(f Frame) bool { return f.ID >= lo && f.ID <= hi }
}

// ByMask matches when id and the frame identifier agree on every bit of mask.
func ByMask(id, mask uint32) FrameFilter {
	want := id & mask
	return func(f Frame) bool { return f.ID&mask == want }
}

// And matches when both a and b match. A nil operand is ignored.
func And(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(f Frame) bool { return a(f) && b(f) }
}

// Or matches when either a or b matches. A nil operand is ignored.
func Or(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(f Frame) bool { return a(f) || b(f) }
}

// Not inverts a. Not(nil) matches everything.
func Not(a FrameFilter) FrameFilter {
	if a == nil {
		return func(Frame) bool { return true }
	}
	return func(f Frame) bool { return !a(f) }
}

// ParseFilter builds a filter from identifier terms. A term is an identifier
// ("0x4F1"), an inclusive range ("0x400-0x4FF") or an identifier and mask
// ("0x500/0x700"), in any base strconv accepts. A leading '!' excludes the
// term. A frame matches when it matches any included term, or when there are
// none, and no excluded term. No terms yields a nil filter.
func ParseFilter(terms ...string) (FrameFilter, error) {
	var (
		ids           []uint32
		include, omit FrameFilter
	)
	for _, raw := range terms {
		t := strings.TrimSpace(raw)
		neg := strings.HasPrefix(t, "!")
		t = strings.TrimPrefix(t, "!")

		var (
			term FrameFilter
			id   uint32
			err  error
		)
		switch {
		case strings.Contains(t, "-"):
			lo, hi, _ := strings.Cut(t, "-")
			var a, b uint32
			if a, err = parseID(lo); err == nil {
				if b, err = parseID(hi); err == nil {
					term = ByRange(a, b)
				}
			}
		case strings.Contains(t, "/"):
			v, m, _ := strings.Cut(t, "/")
			var mask uint32
			if id, err = parseID(v); err == nil {
				if mask, err = parseID(m); err == nil {
					term = ByMask(id, mask)
				}
			}
		default:
			if id, err = parseID(t); err == nil && !neg {
				ids = append(ids, id)
				continue
			}
			term = ByID(id)
		}
		if err != nil {
			return nil, fmt.Errorf("canbus: filter term %q: %w", raw, err)
		}
		if neg {
			omit = Or(omit, term)
		} else {
			include = Or(include, term)
		}
	}
	if len(ids) > 0 {
		include = Or(ByIDs(ids...), include)
	}
	if omit != nil {
		return And(include, Not(omit)), nil
	}
	return include, nil
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 29)
	return uint32(v), err
}
