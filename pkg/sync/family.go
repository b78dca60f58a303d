// Package sync implements the reconciliation engine: the generic algorithm
// that takes a freshly fetched set of source records, the identity mapping
// accumulated from prior runs, and the live state of the target catalog,
// and produces a minimal, safe set of create, update, and delete
// operations. The same engine serves every entity family; a Family
// implementation provides the per-family specifics.
package sync

import (
	"context"

	"github.com/opendatabs/metasync/pkg/catalog"
)

// Record is one canonical source entity, produced fresh each run by a
// source reader and immutable within the run.
type Record struct {
	// Key is the natural key matching the record to a catalog asset
	// across runs. Case-preserving, must be non-empty.
	Key string

	// Label and Description are the record's display fields.
	Label       string
	Description string

	// ParentPath is the business-key path of the collection the asset
	// belongs under. Empty for root-level assets.
	ParentPath string

	// Fields holds the remaining typed values keyed by the catalog's
	// custom-property names.
	Fields map[string]string

	// Children are the record's sub-items (columns of a dataset
	// composition, paragraphs of a legal text), keyed by Code. Only
	// composite families populate this.
	Children []catalog.Child
}

// Family encapsulates what differs between entity families: the scope of
// the catalog subtree they manage and how a source record translates into
// desired catalog state. Everything else, the match/diff/mutate/delete
// shape, lives in the Reconciler.
type Family interface {
	// Name identifies the family in logs and reports.
	Name() string

	// Scope selects the catalog subtree this family manages.
	Scope() catalog.Scope

	// Desired derives the target payload and child items for a record.
	// Returns UnknownTypeError when a record's declared type has no
	// schema element; the record is then skipped and counted as an
	// error without failing the run.
	Desired(r Record) (catalog.Payload, []catalog.Child, error)

	// Composite reports whether the family diffs child items. When
	// false the engine never touches children on updates.
	Composite() bool
}

// Source fetches the canonical record set for one entity family from its
// external system. The engine assumes the sequence is complete but not
// pre-deduplicated; the duplicate guard re-checks.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}
