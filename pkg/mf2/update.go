package mf2

import (
	"reflect"
	"sort"
)

// OperationKind discriminates update operations.
type OperationKind string

// Update operation kinds.
const (
	OpReplace OperationKind = "replace"
	OpAdd     OperationKind = "add"
	OpDelete  OperationKind = "delete"
)

// Operation is one atomic mutation of a property bag. A Delete with nil
// Values removes the whole property; with Values it removes only the
// deeply-equal elements.
type Operation struct {
	Kind     OperationKind
	Property string
	Values   []any
}

// DeriveOperations flattens an update spec into the ordered operation
// list: every replace clause, then every add clause, then every delete
// clause. Clauses of the same kind are emitted in sorted property order
// so derivation is deterministic.
func DeriveOperations(spec *UpdateSpec) []Operation {
	var ops []Operation

	for _, property := range sortedKeys(spec.Replace) {
		ops = append(ops, Operation{Kind: OpReplace, Property: property, Values: spec.Replace[property]})
	}
	for _, property := range sortedKeys(spec.Add) {
		ops = append(ops, Operation{Kind: OpAdd, Property: property, Values: spec.Add[property]})
	}
	for _, property := range spec.DeleteProperties {
		ops = append(ops, Operation{Kind: OpDelete, Property: property})
	}
	for _, property := range sortedKeys(spec.DeleteValues) {
		values := spec.DeleteValues[property]
		if values == nil {
			values = []any{}
		}
		ops = append(ops, Operation{Kind: OpDelete, Property: property, Values: values})
	}

	return ops
}

// Apply runs the operations against a property bag and returns the
// resulting bag. The input is not mutated. Missing properties are
// treated as empty sequences for add; delete of an absent property is a
// no-op. A property whose sequence becomes empty is removed entirely.
func Apply(properties map[string][]any, ops []Operation) map[string][]any {
	result := make(map[string][]any, len(properties))
	for key, values := range properties {
		result[key] = append([]any(nil), values...)
	}

	for _, op := range ops {
		switch op.Kind {
		case OpReplace:
			result[op.Property] = append([]any(nil), op.Values...)
		case OpAdd:
			result[op.Property] = append(result[op.Property], op.Values...)
		case OpDelete:
			if op.Values == nil {
				delete(result, op.Property)
				continue
			}
			remaining := deleteMatching(result[op.Property], op.Values)
			if len(remaining) == 0 {
				delete(result, op.Property)
			} else {
				result[op.Property] = remaining
			}
		}
	}

	return result
}

// deleteMatching removes every element of current that is deeply equal
// to any element of toDelete. Deep equality matters for structured
// values like {url, alt} photo objects.
func deleteMatching(current, toDelete []any) []any {
	var remaining []any
	for _, value := range current {
		if !containsDeepEqual(toDelete, value) {
			remaining = append(remaining, value)
		}
	}
	return remaining
}

func containsDeepEqual(values []any, target any) bool {
	for _, v := range values {
		if reflect.DeepEqual(v, target) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
