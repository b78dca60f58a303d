package sync

import (
	"sort"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
)

// CheckRecords verifies that natural keys are unique within a source
// record set. It scans the full set and reports every collision at once;
// any duplicate is fatal for the run because identity resolution is
// undefined in its presence. Empty keys are ignored here and rejected
// per-record later.
func CheckRecords(scope string, records []Record) error {
	byKey := make(map[string][]string)
	for _, r := range records {
		if r.Key == "" {
			continue
		}
		byKey[r.Key] = append(byKey[r.Key], r.Label)
	}
	return collisions(scope, byKey)
}

// CheckAssets verifies that natural keys are unique within the live
// catalog assets a scope manages. Two live assets sharing a key means the
// catalog was modified out-of-band into a state the engine cannot resolve.
func CheckAssets(scope string, sc catalog.Scope, assets []catalog.Asset) error {
	byKey := make(map[string][]string)
	for i := range assets {
		key := sc.Key(&assets[i])
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], assets[i].ID.String())
	}
	return collisions(scope, byKey)
}

func collisions(scope string, byKey map[string][]string) error {
	var found []errors.KeyCollision
	for key, ids := range byKey {
		if len(ids) > 1 {
			found = append(found, errors.KeyCollision{Key: key, IDs: ids})
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Key < found[j].Key })
	return errors.NewDuplicateKeyError(scope, found)
}
