// Package catalog defines the target-catalog data model and the Accessor
// contract used to read and mutate the catalog's hierarchical asset tree.
// The catalog itself is an external system; everything in this package is
// the engine-side view of it.
package catalog

import "strings"

// Ref is an opaque asset identifier owned by the target catalog.
type Ref string

// String returns the string representation of a ref.
func (r Ref) String() string {
	return string(r)
}

// Type identifies the schema element an asset instantiates.
type Type string

// Asset types managed by the sync engine.
const (
	TypeCollection      Type = "Collection"
	TypeDataset         Type = "Dataset"
	TypeDataObject      Type = "DataObject"
	TypeReferenceObject Type = "ReferenceObject"
)

// Status is the lifecycle state of an asset in the target catalog.
type Status string

// Status values recognized by the target catalog.
const (
	// StatusWorking is the draft state assets are created in by default.
	StatusWorking Status = "WORKING"

	// StatusPublished makes an asset publicly visible.
	StatusPublished Status = "PUBLISHED"

	// StatusReviewDeletion flags an asset for human deletion review.
	// Used instead of hard deletion when the asset has dependents.
	StatusReviewDeletion Status = "REVIEWDEL"
)

// Asset is the engine-side view of one target-catalog asset. It is owned by
// the catalog; the engine reads and mutates it only through an Accessor and
// never treats a locally held Asset as authoritative for existence checks.
type Asset struct {
	ID          Ref
	Type        Type
	Label       string
	Description string
	Status      Status
	Stereotype  string

	// ParentPath is the business-key path of the containing collection,
	// components joined by "/" with special characters escaped.
	ParentPath string

	// Properties holds the asset's typed custom fields, including the
	// natural-key field for engine-managed assets.
	Properties map[string]string

	// Children are the asset's dependent items (attributes of a data
	// object, reference values of a legal entry). Populated by
	// Accessor.ListChildren, not by Get.
	Children []Child
}

// Property returns a custom field value, or "" when absent.
func (a *Asset) Property(name string) string {
	if a.Properties == nil {
		return ""
	}
	return a.Properties[name]
}

// Child is a dependent item of a composite asset, keyed by its technical
// name (Code), never by position. A live child carries its catalog ID; a
// desired child computed from a source record does not.
type Child struct {
	ID     Ref
	Code   string
	Fields map[string]string
}

// Field returns a child field value, or "" when absent.
func (c *Child) Field(name string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[name]
}

// Payload carries the desired state for a create or update call.
type Payload struct {
	Type        Type
	Label       string
	Description string
	Status      Status
	Stereotype  string
	ParentPath  string
	Properties  map[string]string
}

// Scope selects the subset of the asset tree one entity family manages:
// assets of the given type (and stereotype, when set) that carry the
// family's natural-key property.
type Scope struct {
	Type        Type
	Stereotype  string
	KeyProperty string
}

// Matches reports whether an asset falls under this scope.
func (s Scope) Matches(a *Asset) bool {
	if a.Type != s.Type {
		return false
	}
	if s.Stereotype != "" && a.Stereotype != s.Stereotype {
		return false
	}
	if s.KeyProperty == "" {
		return true
	}
	return a.Property(s.KeyProperty) != ""
}

// Key extracts the natural key of an in-scope asset.
func (s Scope) Key(a *Asset) string {
	return a.Property(s.KeyProperty)
}

// EscapePathComponent escapes the characters that have structural meaning
// inside a business-key path component ("/", ".", `"`). Components are
// escaped individually before being joined with "/".
func EscapePathComponent(component string) string {
	if !strings.ContainsAny(component, `/."`) {
		return component
	}
	var b strings.Builder
	b.Grow(len(component) + 2)
	b.WriteByte('"')
	for i := 0; i < len(component); i++ {
		if component[i] == '"' {
			b.WriteByte('"')
		}
		b.WriteByte(component[i])
	}
	b.WriteByte('"')
	return b.String()
}

// JoinPath escapes each component and joins them into a business-key path.
func JoinPath(components ...string) string {
	escaped := make([]string, len(components))
	for i, c := range components {
		escaped[i] = EscapePathComponent(c)
	}
	return strings.Join(escaped, "/")
}
