// Package enums holds the string enums mirrored by Postgres enum types.
package enums

import (
	"fmt"
	"slices"
)

// values is the closed set of members for one enum type.
type values[T ~string] struct {
	kind    string
	members []T
}

func enum[T ~string](kind string, members ...T) values[T] {
	return values[T]{kind: kind, members: members}
}

func (v values[T]) has(x T) bool { return slices.Contains(v.members, x) }

func (v values[T]) parse(raw string) (T, error) {
	if x := T(raw); v.has(x) {
		return x, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", v.kind, raw)
}
