package catalog

import "context"

// Accessor provides read/create/update/delete primitives against the target
// catalog's asset tree, abstracting the wire format. All operations return a
// *errors.RemoteError on transport or protocol failure; Get and the child
// lookups additionally report errors.ErrNotFound for missing assets so the
// reconciler can distinguish "gone" from "broken".
type Accessor interface {
	// Get fetches a single asset by reference. Children are not populated.
	Get(ctx context.Context, ref Ref) (*Asset, error)

	// Create creates an asset under the collection identified by the
	// payload's ParentPath and returns it with its catalog-assigned ID.
	Create(ctx context.Context, payload Payload) (*Asset, error)

	// Update mutates an existing asset. With merge true only the fields
	// present in the payload change (PATCH semantics); with merge false
	// the asset is replaced wholesale (PUT semantics).
	Update(ctx context.Context, ref Ref, payload Payload, merge bool) (*Asset, error)

	// Delete removes an asset. Callers go through the deletion policy
	// first; the accessor itself never cascades.
	Delete(ctx context.Context, ref Ref) error

	// List returns the live assets within the given scope: the subset of
	// the tree this entity family manages.
	List(ctx context.Context, scope Scope) ([]Asset, error)

	// ListChildren returns an asset's dependent items.
	ListChildren(ctx context.Context, ref Ref) ([]Child, error)

	// CreateChild adds a dependent item to a composite asset.
	CreateChild(ctx context.Context, parent Ref, child Child) (*Child, error)

	// UpdateChild mutates a dependent item in place.
	UpdateChild(ctx context.Context, ref Ref, child Child) (*Child, error)

	// DeleteChild removes a dependent item.
	DeleteChild(ctx context.Context, ref Ref) error

	// MarkForReview transitions an asset to the flagged-for-deletion
	// status without removing it.
	MarkForReview(ctx context.Context, ref Ref) error
}
