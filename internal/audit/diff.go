package audit

import "github.com/daladan/settlement/internal/domain"

// Diff compares a before and after snapshot of the same row and returns only
// the fields whose serialized value changed. Fields present in only one
// snapshot are treated as changing from or to nil.
func Diff(before, after Snapshot) map[string]domain.FieldChange {
	changes := make(map[string]domain.FieldChange)

	for field, oldVal := range before {
		newVal, ok := after[field]
		if !ok {
			changes[field] = domain.FieldChange{Old: oldVal, New: nil}
			continue
		}
		if !equalValue(oldVal, newVal) {
			changes[field] = domain.FieldChange{Old: oldVal, New: newVal}
		}
	}

	for field, newVal := range after {
		if _, ok := before[field]; !ok {
			changes[field] = domain.FieldChange{Old: nil, New: newVal}
		}
	}

	return changes
}

func equalValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
