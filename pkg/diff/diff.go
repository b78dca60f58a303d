// Package diff computes field-level differences between the desired state
// of an asset, derived from a source record, and its live state in the
// target catalog. Only changed fields drive mutations; an empty diff means
// the item is counted as unchanged and no write happens.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opendatabs/metasync/pkg/catalog"
)

// FieldChange records one field moving from an old value to a new value.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// String renders the change for log output.
func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %q -> %q", c.Field, c.Old, c.New)
}

// Normalize trims surrounding whitespace. Values are compared normalized
// so that formatting noise from a source export never counts as a change,
// but the raw desired value is still what gets written.
func Normalize(value string) string {
	return strings.TrimSpace(value)
}

// Equal reports whether two values are equal after normalization. An empty
// string and a missing value compare as equal.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Fields compares a desired payload against a live asset and returns the
// changed fields. ParentPath differing counts as a change: the update that
// carries it moves the asset to its new parent.
func Fields(live *catalog.Asset, desired catalog.Payload) []FieldChange {
	var changes []FieldChange
	add := func(field, old, new string) {
		if !Equal(old, new) {
			changes = append(changes, FieldChange{Field: field, Old: old, New: new})
		}
	}

	add("label", live.Label, desired.Label)
	add("description", live.Description, desired.Description)
	add("parentPath", live.ParentPath, desired.ParentPath)

	for _, name := range sortedKeys(desired.Properties) {
		add("properties."+name, live.Property(name), desired.Properties[name])
	}
	return changes
}

// ChildFields compares a desired child against its live counterpart,
// matched by code. Only fields present in the desired child are compared;
// extra live fields the source does not manage are left alone.
func ChildFields(live, desired catalog.Child) []FieldChange {
	var changes []FieldChange
	for _, name := range sortedKeys(desired.Fields) {
		old, new := live.Field(name), desired.Fields[name]
		if !Equal(old, new) {
			changes = append(changes, FieldChange{Field: name, Old: old, New: new})
		}
	}
	return changes
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
