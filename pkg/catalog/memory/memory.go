// Package memory provides an in-memory catalog.Accessor. It backs tests and
// dry runs with the same contract the REST accessor honors, including
// ErrNotFound on missing refs and catalog-assigned asset IDs.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
)

// Accessor is an in-memory implementation of catalog.Accessor.
type Accessor struct {
	mu       sync.RWMutex
	assets   map[catalog.Ref]*catalog.Asset
	children map[catalog.Ref]catalog.Ref // child ref -> parent asset ref
	readOnly bool
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithReadOnly makes every mutating operation fail with ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(a *Accessor) {
		a.readOnly = readOnly
	}
}

// New creates an empty in-memory accessor.
func New(opts ...Option) *Accessor {
	a := &Accessor{
		assets:   make(map[catalog.Ref]*catalog.Asset),
		children: make(map[catalog.Ref]catalog.Ref),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Seed inserts an asset as-is, assigning an ID when none is set. Intended
// for test setup; bypasses the read-only guard.
func (a *Accessor) Seed(asset catalog.Asset) catalog.Ref {
	a.mu.Lock()
	defer a.mu.Unlock()
	if asset.ID == "" {
		asset.ID = catalog.Ref(uuid.NewString())
	}
	for i := range asset.Children {
		if asset.Children[i].ID == "" {
			asset.Children[i].ID = catalog.Ref(uuid.NewString())
		}
		a.children[asset.Children[i].ID] = asset.ID
	}
	a.assets[asset.ID] = &asset
	return asset.ID
}

// Remove deletes an asset directly, simulating an out-of-band deletion in
// the target catalog. Intended for test setup.
func (a *Accessor) Remove(ref catalog.Ref) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.assets, ref)
}

// Get implements catalog.Accessor.
func (a *Accessor) Get(_ context.Context, ref catalog.Ref) (*catalog.Asset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	asset, ok := a.assets[ref]
	if !ok {
		return nil, errors.NewNotFoundError("asset", ref.String())
	}
	copied := copyAsset(asset)
	copied.Children = nil
	return copied, nil
}

// Create implements catalog.Accessor.
func (a *Accessor) Create(_ context.Context, payload catalog.Payload) (*catalog.Asset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return nil, errors.ErrReadOnly
	}

	asset := &catalog.Asset{
		ID:          catalog.Ref(uuid.NewString()),
		Type:        payload.Type,
		Label:       payload.Label,
		Description: payload.Description,
		Status:      payload.Status,
		Stereotype:  payload.Stereotype,
		ParentPath:  payload.ParentPath,
		Properties:  copyProperties(payload.Properties),
	}
	if asset.Status == "" {
		asset.Status = catalog.StatusWorking
	}
	a.assets[asset.ID] = asset
	return copyAsset(asset), nil
}

// Update implements catalog.Accessor.
func (a *Accessor) Update(_ context.Context, ref catalog.Ref, payload catalog.Payload, merge bool) (*catalog.Asset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return nil, errors.ErrReadOnly
	}
	asset, ok := a.assets[ref]
	if !ok {
		return nil, errors.NewNotFoundError("asset", ref.String())
	}

	if !merge {
		asset.Label = payload.Label
		asset.Description = payload.Description
		asset.Stereotype = payload.Stereotype
		asset.ParentPath = payload.ParentPath
		asset.Properties = copyProperties(payload.Properties)
	} else {
		// Merge mirrors the REST accessor's PATCH contract: label and
		// description always travel, so an empty description clears the
		// live one. The remaining fields only apply when set.
		asset.Label = payload.Label
		asset.Description = payload.Description
		if payload.Stereotype != "" {
			asset.Stereotype = payload.Stereotype
		}
		if payload.ParentPath != "" {
			asset.ParentPath = payload.ParentPath
		}
		if payload.Properties != nil {
			if asset.Properties == nil {
				asset.Properties = make(map[string]string, len(payload.Properties))
			}
			for k, v := range payload.Properties {
				asset.Properties[k] = v
			}
		}
	}
	if payload.Status != "" {
		asset.Status = payload.Status
	}
	return copyAsset(asset), nil
}

// Delete implements catalog.Accessor.
func (a *Accessor) Delete(_ context.Context, ref catalog.Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return errors.ErrReadOnly
	}
	asset, ok := a.assets[ref]
	if !ok {
		return errors.NewNotFoundError("asset", ref.String())
	}
	for _, child := range asset.Children {
		delete(a.children, child.ID)
	}
	delete(a.assets, ref)
	return nil
}

// List implements catalog.Accessor.
func (a *Accessor) List(_ context.Context, scope catalog.Scope) ([]catalog.Asset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []catalog.Asset
	for _, asset := range a.assets {
		if scope.Matches(asset) {
			out = append(out, *copyAsset(asset))
		}
	}
	return out, nil
}

// ListChildren implements catalog.Accessor.
func (a *Accessor) ListChildren(_ context.Context, ref catalog.Ref) ([]catalog.Child, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	asset, ok := a.assets[ref]
	if !ok {
		return nil, errors.NewNotFoundError("asset", ref.String())
	}
	children := make([]catalog.Child, len(asset.Children))
	for i, c := range asset.Children {
		children[i] = copyChild(c)
	}
	return children, nil
}

// CreateChild implements catalog.Accessor.
func (a *Accessor) CreateChild(_ context.Context, parent catalog.Ref, child catalog.Child) (*catalog.Child, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return nil, errors.ErrReadOnly
	}
	asset, ok := a.assets[parent]
	if !ok {
		return nil, errors.NewNotFoundError("asset", parent.String())
	}

	child.ID = catalog.Ref(uuid.NewString())
	child.Fields = copyProperties(child.Fields)
	asset.Children = append(asset.Children, child)
	a.children[child.ID] = parent
	created := copyChild(child)
	return &created, nil
}

// UpdateChild implements catalog.Accessor.
func (a *Accessor) UpdateChild(_ context.Context, ref catalog.Ref, child catalog.Child) (*catalog.Child, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return nil, errors.ErrReadOnly
	}
	parent, ok := a.children[ref]
	if !ok {
		return nil, errors.NewNotFoundError("child", ref.String())
	}
	asset := a.assets[parent]
	for i := range asset.Children {
		if asset.Children[i].ID == ref {
			asset.Children[i].Code = child.Code
			asset.Children[i].Fields = copyProperties(child.Fields)
			updated := copyChild(asset.Children[i])
			return &updated, nil
		}
	}
	return nil, errors.NewNotFoundError("child", ref.String())
}

// DeleteChild implements catalog.Accessor.
func (a *Accessor) DeleteChild(_ context.Context, ref catalog.Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return errors.ErrReadOnly
	}
	parent, ok := a.children[ref]
	if !ok {
		return errors.NewNotFoundError("child", ref.String())
	}
	asset := a.assets[parent]
	for i := range asset.Children {
		if asset.Children[i].ID == ref {
			asset.Children = append(asset.Children[:i], asset.Children[i+1:]...)
			break
		}
	}
	delete(a.children, ref)
	return nil
}

// MarkForReview implements catalog.Accessor.
func (a *Accessor) MarkForReview(_ context.Context, ref catalog.Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readOnly {
		return errors.ErrReadOnly
	}
	asset, ok := a.assets[ref]
	if !ok {
		return errors.NewNotFoundError("asset", ref.String())
	}
	asset.Status = catalog.StatusReviewDeletion
	return nil
}

func copyAsset(a *catalog.Asset) *catalog.Asset {
	copied := *a
	copied.Properties = copyProperties(a.Properties)
	if a.Children != nil {
		copied.Children = make([]catalog.Child, len(a.Children))
		for i, c := range a.Children {
			copied.Children[i] = copyChild(c)
		}
	}
	return &copied
}

func copyChild(c catalog.Child) catalog.Child {
	c.Fields = copyProperties(c.Fields)
	return c
}

func copyProperties(props map[string]string) map[string]string {
	if props == nil {
		return nil
	}
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return copied
}
