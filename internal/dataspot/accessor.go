// Package dataspot binds the catalog.Accessor contract to the target
// catalog's REST API. All wire-format knowledge lives here; the engine
// above it only ever sees catalog types.
package dataspot

import (
	"context"
	"fmt"
	"net/url"

	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
)

// Accessor implements catalog.Accessor against one scheme of the catalog
// service.
type Accessor struct {
	client *transport.Client
	scheme string
}

// New creates an accessor for a scheme, e.g. the data catalog or the
// organizational structure model.
func New(client *transport.Client, scheme string) *Accessor {
	return &Accessor{client: client, scheme: scheme}
}

// Get implements catalog.Accessor.
func (a *Accessor) Get(ctx context.Context, ref catalog.Ref) (*catalog.Asset, error) {
	var w wireAsset
	if err := a.client.Get(ctx, a.assetPath(ref), &w); err != nil {
		return nil, err
	}
	return w.toAsset(), nil
}

// Create implements catalog.Accessor.
func (a *Accessor) Create(ctx context.Context, payload catalog.Payload) (*catalog.Asset, error) {
	var w wireAsset
	path := fmt.Sprintf("/api/schemes/%s/assets", url.PathEscape(a.scheme))
	if err := a.client.Post(ctx, path, fromPayload(payload), &w); err != nil {
		return nil, err
	}
	return w.toAsset(), nil
}

// Update implements catalog.Accessor. With merge set the call is a PATCH
// leaving omitted fields alone; without it a PUT replacing the asset.
func (a *Accessor) Update(ctx context.Context, ref catalog.Ref, payload catalog.Payload, merge bool) (*catalog.Asset, error) {
	var w wireAsset
	body := fromPayload(payload)
	var err error
	if merge {
		err = a.client.Patch(ctx, a.assetPath(ref), body, &w)
	} else {
		err = a.client.Put(ctx, a.assetPath(ref), body, &w)
	}
	if err != nil {
		return nil, err
	}
	return w.toAsset(), nil
}

// Delete implements catalog.Accessor.
func (a *Accessor) Delete(ctx context.Context, ref catalog.Ref) error {
	return a.client.Delete(ctx, a.assetPath(ref))
}

// List implements catalog.Accessor. The service filters by type and
// stereotype; the key-property filter of the scope is applied locally.
func (a *Accessor) List(ctx context.Context, scope catalog.Scope) ([]catalog.Asset, error) {
	q := url.Values{}
	q.Set("type", string(scope.Type))
	if scope.Stereotype != "" {
		q.Set("stereotype", scope.Stereotype)
	}
	path := fmt.Sprintf("/api/schemes/%s/assets?%s", url.PathEscape(a.scheme), q.Encode())

	var page struct {
		Assets []wireAsset `json:"assets"`
	}
	if err := a.client.Get(ctx, path, &page); err != nil {
		return nil, err
	}

	var out []catalog.Asset
	for _, w := range page.Assets {
		asset := w.toAsset()
		if scope.Matches(asset) {
			out = append(out, *asset)
		}
	}
	return out, nil
}

// ListChildren implements catalog.Accessor.
func (a *Accessor) ListChildren(ctx context.Context, ref catalog.Ref) ([]catalog.Child, error) {
	var page struct {
		Attributes []wireChild `json:"attributes"`
	}
	if err := a.client.Get(ctx, a.assetPath(ref)+"/attributes", &page); err != nil {
		return nil, err
	}
	children := make([]catalog.Child, len(page.Attributes))
	for i, w := range page.Attributes {
		children[i] = w.toChild()
	}
	return children, nil
}

// CreateChild implements catalog.Accessor.
func (a *Accessor) CreateChild(ctx context.Context, parent catalog.Ref, child catalog.Child) (*catalog.Child, error) {
	var w wireChild
	if err := a.client.Post(ctx, a.assetPath(parent)+"/attributes", fromChild(child), &w); err != nil {
		return nil, err
	}
	created := w.toChild()
	return &created, nil
}

// UpdateChild implements catalog.Accessor.
func (a *Accessor) UpdateChild(ctx context.Context, ref catalog.Ref, child catalog.Child) (*catalog.Child, error) {
	var w wireChild
	if err := a.client.Put(ctx, "/api/attributes/"+url.PathEscape(ref.String()), fromChild(child), &w); err != nil {
		return nil, err
	}
	updated := w.toChild()
	return &updated, nil
}

// DeleteChild implements catalog.Accessor.
func (a *Accessor) DeleteChild(ctx context.Context, ref catalog.Ref) error {
	return a.client.Delete(ctx, "/api/attributes/"+url.PathEscape(ref.String()))
}

// MarkForReview implements catalog.Accessor. The status transition is a
// merge update so no other field is touched.
func (a *Accessor) MarkForReview(ctx context.Context, ref catalog.Ref) error {
	body := map[string]string{"status": string(catalog.StatusReviewDeletion)}
	return a.client.Patch(ctx, a.assetPath(ref), body, nil)
}

func (a *Accessor) assetPath(ref catalog.Ref) string {
	return "/api/assets/" + url.PathEscape(ref.String())
}
