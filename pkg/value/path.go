package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath is returned for empty paths or paths with empty segments
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotContainer is returned when a path traverses a scalar
	ErrNotContainer = errors.New("path traverses a non-container value")
	// ErrIndexOutOfRange is returned when a path addresses a missing array element on write
	ErrIndexOutOfRange = errors.New("array index out of range")
)

// SplitPath splits a dotted path ("user.country_code", "cart.items.0.sku")
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// ValidPath reports whether every segment of path is non-empty
func ValidPath(path string) bool {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return false
	}
	for _, seg := range segs {
		if seg == "" {
			return false
		}
	}
	return true
}

// Get resolves a dotted path, returning Missing when any segment is absent.
// The empty path returns v itself.
func (v Value) Get(path string) Value {
	found, err := v.Lookup(path)
	if err != nil {
		return Missing
	}
	return found
}

// Lookup resolves a dotted path. Absent keys yield Missing without error,
// traversing through a scalar yields ErrNotContainer.
func (v Value) Lookup(path string) (Value, error) {
	cur := v
	for _, seg := range SplitPath(path) {
		switch cur.kind {
		case KindMissing, KindNull:
			return Missing, nil
		case KindObject:
			cur = cur.o[seg]
		case KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return Missing, fmt.Errorf("%w: %q is not an array index", ErrInvalidPath, seg)
			}
			if idx < 0 || idx >= len(cur.a) {
				return Missing, nil
			}
			cur = cur.a[idx]
		default:
			return Missing, fmt.Errorf("%w: segment %q on %s", ErrNotContainer, seg, cur.kind)
		}
	}
	return cur, nil
}

// Set writes nv at path, creating intermediate objects as needed, and returns
// the value previously stored there (Missing when absent).
// A null or missing receiver becomes an empty object first.
func (v *Value) Set(path string, nv Value) (Value, error) {
	if !ValidPath(path) {
		return Missing, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return setIn(v, SplitPath(path), nv)
}

func setIn(cur *Value, segs []string, nv Value) (Value, error) {
	if cur.kind == KindMissing || cur.kind == KindNull {
		*cur = NewObject(nil)
	}
	seg := segs[0]
	switch cur.kind {
	case KindObject:
		if len(segs) == 1 {
			old := cur.o[seg]
			cur.o[seg] = nv
			return old, nil
		}
		child := cur.o[seg]
		old, err := setIn(&child, segs[1:], nv)
		if err != nil {
			return Missing, err
		}
		cur.o[seg] = child
		return old, nil
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return Missing, fmt.Errorf("%w: %q is not an array index", ErrInvalidPath, seg)
		}
		if idx < 0 || idx >= len(cur.a) {
			return Missing, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, idx, len(cur.a))
		}
		if len(segs) == 1 {
			old := cur.a[idx]
			cur.a[idx] = nv
			return old, nil
		}
		return setIn(&cur.a[idx], segs[1:], nv)
	default:
		return Missing, fmt.Errorf("%w: segment %q on %s", ErrNotContainer, seg, cur.kind)
	}
}
