// Package enums holds the persisted string vocabularies. Lifecycle statuses
// match exactly; user-supplied values (roles, payment methods) are folded to
// lower case before matching.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

type vocabulary[T ~string] struct {
	kind   string
	values []T
	fold   bool
}

func (v vocabulary[T]) has(value T) bool {
	return slices.Contains(v.values, value)
}

func (v vocabulary[T]) parse(raw string) (T, error) {
	candidate := raw
	if v.fold {
		candidate = strings.ToLower(strings.TrimSpace(raw))
	}
	if value := T(candidate); v.has(value) {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", v.kind, raw)
}
