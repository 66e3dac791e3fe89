package utils

import (
	"maps"
	"slices"
)

// GetKeys returns the keys of m in ascending order, never nil.
func GetKeys[T any](m map[string]T) []string {
	keys := slices.AppendSeq([]string{}, maps.Keys(m))
	slices.Sort(keys)
	return keys
}
