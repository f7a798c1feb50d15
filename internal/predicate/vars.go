package predicate

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/acted/rules-engine/pkg/value"
	"github.com/diegoholiveira/jsonlogic/v3"
)

// ErrInvalidPredicate is returned by Check when a predicate is not well formed
var ErrInvalidPredicate = errors.New("invalid predicate")

// Vars returns the sorted, de-duplicated literal paths referenced by var operations in node
func Vars(node value.Value) []string {
	seen := make(map[string]struct{})
	collectVars(node, seen)
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func collectVars(node value.Value, seen map[string]struct{}) {
	if op, args, ok := IsOperation(node); ok {
		items := operands(args)
		if op == "var" {
			if len(items) > 0 {
				if path, ok := items[0].Str(); ok && path != "" {
					seen[path] = struct{}{}
				}
			}
			for _, item := range items[1:] {
				collectVars(item, seen)
			}
			return
		}
		if op == "missing" {
			for _, item := range items {
				if keys, ok := item.Array(); ok {
					for _, key := range keys {
						if path, ok := key.Str(); ok && path != "" {
							seen[path] = struct{}{}
						}
					}
				}
				if path, ok := item.Str(); ok && path != "" {
					seen[path] = struct{}{}
				}
			}
			return
		}
		for _, item := range items {
			collectVars(item, seen)
		}
		return
	}
	if items, ok := node.Array(); ok {
		for _, item := range items {
			collectVars(item, seen)
		}
	}
}

// Check validates the structure of a predicate: operator arities and JsonLogic well-formedness.
// Literal conditions (true, false) are always valid.
func Check(node value.Value) error {
	if _, _, ok := IsOperation(node); !ok {
		if node.Kind() == value.KindObject {
			return fmt.Errorf("%w: object condition must be a single operator", ErrInvalidPredicate)
		}
		return nil
	}
	b, err := node.MarshalJSON()
	if err != nil {
		return err
	}
	if !jsonlogic.IsValid(bytes.NewReader(b)) {
		return fmt.Errorf("%w: %s", ErrInvalidPredicate, b)
	}
	return checkArity(node)
}

func checkArity(node value.Value) error {
	op, args, ok := IsOperation(node)
	if !ok {
		if fields, isObject := node.Object(); isObject {
			if len(fields) == 1 {
				for key := range fields {
					return fmt.Errorf("%w: unsupported operator %q", ErrInvalidPredicate, key)
				}
			}
			return fmt.Errorf("%w: object literals are not supported in conditions", ErrInvalidPredicate)
		}
		if items, isArray := node.Array(); isArray {
			for _, item := range items {
				if err := checkArity(item); err != nil {
					return err
				}
			}
		}
		return nil
	}
	items := operands(args)
	lo, hi := arity(op)
	if len(items) < lo || (hi >= 0 && len(items) > hi) {
		return fmt.Errorf("%w: operator %q takes %s operands, got %d", ErrInvalidPredicate, op, arityText(lo, hi), len(items))
	}
	for _, item := range items {
		if err := checkArity(item); err != nil {
			return err
		}
	}
	return nil
}

func arity(op string) (int, int) {
	switch op {
	case "==", "!=", ">", ">=", "/", "in":
		return 2, 2
	case "<", "<=":
		return 2, 3
	case "-", "var":
		return 1, 2
	case "!", "!!":
		return 1, 1
	case "missing":
		return 0, -1
	default:
		return 1, -1
	}
}

func arityText(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d", lo)
	case lo == hi:
		return fmt.Sprintf("%d", lo)
	default:
		return fmt.Sprintf("%d to %d", lo, hi)
	}
}
