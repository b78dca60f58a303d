package sync

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/catalog/memory"
	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/mapping"
)

// testFamily manages Collection assets keyed by the "unit_id" property.
type testFamily struct {
	composite bool
}

func (f *testFamily) Name() string { return "units" }

func (f *testFamily) Composite() bool { return f.composite }

func (f *testFamily) Scope() catalog.Scope {
	return catalog.Scope{
		Type:        catalog.TypeCollection,
		Stereotype:  "unit",
		KeyProperty: "unit_id",
	}
}

func (f *testFamily) Desired(r Record) (catalog.Payload, []catalog.Child, error) {
	if r.Fields["kind"] == "unknown" {
		return catalog.Payload{}, nil, errors.NewUnknownTypeError(f.Name(), r.Key, r.Fields["kind"])
	}
	props := map[string]string{"unit_id": r.Key}
	for k, v := range r.Fields {
		props[k] = v
	}
	return catalog.Payload{
		Type:        catalog.TypeCollection,
		Label:       r.Label,
		Description: r.Description,
		Stereotype:  "unit",
		ParentPath:  r.ParentPath,
		Properties:  props,
	}, r.Children, nil
}

// flakyAccessor fails creates of one configured label.
type flakyAccessor struct {
	*memory.Accessor
	failLabel string
}

func (f *flakyAccessor) Create(ctx context.Context, payload catalog.Payload) (*catalog.Asset, error) {
	if payload.Label == f.failLabel {
		return nil, errors.NewRemoteError("create", payload.Label, 500, stderrors.New("backend unavailable"))
	}
	return f.Accessor.Create(ctx, payload)
}

func newStore(t *testing.T) *mapping.Store {
	t.Helper()
	s := mapping.NewStore(filepath.Join(t.TempDir(), "units.csv"))
	require.NoError(t, s.Load())
	return s
}

func newReconciler(t *testing.T, family Family, acc catalog.Accessor, store *mapping.Store) *Reconciler {
	t.Helper()
	r, err := New(family, acc, store)
	require.NoError(t, err)
	return r
}

func TestInitialRunCreatesEverything(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	result, err := r.Run(ctx, []Record{
		{Key: "A", Label: "Unit A", Fields: map[string]string{"value": "v1"}},
		{Key: "B", Label: "Unit B", Fields: map[string]string{"value": "v2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.True(t, result.Initial)
	assert.Equal(t, Counts{Created: 2}, result.Counts)
	assert.Equal(t, 2, store.Len())

	entry, ok := store.Get("A")
	require.True(t, ok)
	got, err := acc.Get(ctx, entry.Ref)
	require.NoError(t, err)
	assert.Equal(t, "Unit A", got.Label)
	assert.Equal(t, catalog.StatusWorking, got.Status)
}

func TestSecondRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{composite: true}, acc, store)

	records := []Record{
		{Key: "A", Label: "Unit A", Children: []catalog.Child{
			{Code: "c1", Fields: map[string]string{"label": "Child 1"}},
		}},
		{Key: "B", Label: "Unit B"},
	}

	first, err := r.Run(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, Counts{Created: 2}, first.Counts)

	second, err := r.Run(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, Counts{Unchanged: 2}, second.Counts)
	assert.False(t, second.HasChanges())
}

func TestIdentityStableAcrossUpdate(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Before", Fields: map[string]string{"value": "v1"}}})
	require.NoError(t, err)
	before, _ := store.Get("A")

	result, err := r.Run(ctx, []Record{{Key: "A", Label: "After", Fields: map[string]string{"value": "v2"}}})
	require.NoError(t, err)

	assert.Equal(t, Counts{Updated: 1}, result.Counts)
	after, _ := store.Get("A")
	assert.Equal(t, before.Ref, after.Ref, "update must preserve the asset identifier")

	require.Len(t, result.Updated, 1)
	fields := make(map[string]string)
	for _, c := range result.Updated[0].Changes {
		fields[c.Field] = c.Old + "->" + c.New
	}
	assert.Equal(t, "Before->After", fields["label"])
	assert.Equal(t, "v1->v2", fields["properties.value"])
}

func TestDuplicateSourceKeysAbortBeforeMutation(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := mapping.NewStore(filepath.Join(t.TempDir(), "units.csv"))
	require.NoError(t, store.Load())
	r := newReconciler(t, &testFamily{}, acc, store)

	result, err := r.Run(ctx, []Record{
		{Key: "A", Label: "first"},
		{Key: "A", Label: "second"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateKey(err))
	assert.Equal(t, StatusError, result.Status)

	// No asset was created and the mapping file was never written.
	assets, listErr := acc.List(ctx, (&testFamily{}).Scope())
	require.NoError(t, listErr)
	assert.Empty(t, assets)
	reloaded := mapping.NewStore(store.Path())
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Initial())
}

func TestDuplicateLiveKeysAbort(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	acc.Seed(catalog.Asset{Type: catalog.TypeCollection, Stereotype: "unit", Label: "one",
		Properties: map[string]string{"unit_id": "A"}})
	acc.Seed(catalog.Asset{Type: catalog.TypeCollection, Stereotype: "unit", Label: "two",
		Properties: map[string]string{"unit_id": "A"}})
	r := newReconciler(t, &testFamily{}, acc, newStore(t))

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A"}})
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateKey(err))
}

func TestOrphanWithoutChildrenIsHardDeleted(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{composite: true}, acc, store)

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A"}, {Key: "B", Label: "Unit B"}})
	require.NoError(t, err)
	bEntry, _ := store.Get("B")

	result, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A"}})
	require.NoError(t, err)

	assert.Equal(t, Counts{Unchanged: 1, Deleted: 1}, result.Counts)
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, DeleteHard, result.Deleted[0].DeleteMode)
	_, getErr := acc.Get(ctx, bEntry.Ref)
	assert.True(t, errors.IsNotFound(getErr))
	_, ok := store.Get("B")
	assert.False(t, ok)
}

func TestOrphanWithChildrenIsFlaggedForReview(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{composite: true}, acc, store)

	_, err := r.Run(ctx, []Record{
		{Key: "A", Label: "Unit A", Fields: map[string]string{"value": "v1"}},
		{Key: "B", Label: "Unit B", Children: []catalog.Child{
			{Code: "c1", Fields: map[string]string{"label": "Child 1"}},
		}},
	})
	require.NoError(t, err)
	bEntry, _ := store.Get("B")

	result, err := r.Run(ctx, []Record{
		{Key: "A", Label: "Unit A", Fields: map[string]string{"value": "v2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, Counts{Updated: 1, Deleted: 1}, result.Counts)
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, DeleteReview, result.Deleted[0].DeleteMode)

	got, getErr := acc.Get(ctx, bEntry.Ref)
	require.NoError(t, getErr)
	assert.Equal(t, catalog.StatusReviewDeletion, got.Status)

	// The mapping entry survives so a reappearing B reuses this asset.
	kept, ok := store.Get("B")
	assert.True(t, ok)
	assert.Equal(t, bEntry.Ref, kept.Ref)

	// A flagged asset is not re-flagged or re-counted on the next run.
	again, err := r.Run(ctx, []Record{
		{Key: "A", Label: "Unit A", Fields: map[string]string{"value": "v2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Counts{Unchanged: 1}, again.Counts)
}

func TestClearedDescriptionConverges(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A", Description: "old text"}})
	require.NoError(t, err)

	// The description was removed at the source; the clear must reach
	// the catalog.
	cleared := []Record{{Key: "A", Label: "Unit A", Description: ""}}
	result, err := r.Run(ctx, cleared)
	require.NoError(t, err)
	assert.Equal(t, Counts{Updated: 1}, result.Counts)

	entry, _ := store.Get("A")
	got, err := acc.Get(ctx, entry.Ref)
	require.NoError(t, err)
	assert.Empty(t, got.Description)

	// Once applied, the run converges.
	again, err := r.Run(ctx, cleared)
	require.NoError(t, err)
	assert.Equal(t, Counts{Unchanged: 1}, again.Counts)
}

func TestFlaggedAssetReappearingIsRestored(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{composite: true}, acc, store)

	records := []Record{
		{Key: "A", Label: "Unit A"},
		{Key: "B", Label: "Unit B", Children: []catalog.Child{
			{Code: "c1", Fields: map[string]string{"label": "Child 1"}},
		}},
	}
	_, err := r.Run(ctx, records)
	require.NoError(t, err)
	bEntry, _ := store.Get("B")

	// B disappears from the source and gets flagged for review.
	_, err = r.Run(ctx, records[:1])
	require.NoError(t, err)
	flagged, err := acc.Get(ctx, bEntry.Ref)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusReviewDeletion, flagged.Status)

	// B reappears: the asset leaves the review queue under its old
	// identity.
	result, err := r.Run(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, Counts{Updated: 1, Unchanged: 1}, result.Counts)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, "B", result.Updated[0].Key)

	restored, err := acc.Get(ctx, bEntry.Ref)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusWorking, restored.Status)
	kept, ok := store.Get("B")
	require.True(t, ok)
	assert.Equal(t, bEntry.Ref, kept.Ref)

	again, err := r.Run(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, Counts{Unchanged: 2}, again.Counts)
}

func TestStaleMappingIsRepaired(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A"}})
	require.NoError(t, err)
	stale, _ := store.Get("A")

	// Asset disappears out-of-band; the mapping now points at nothing.
	acc.Remove(stale.Ref)

	result, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A"}})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, Counts{Created: 1}, result.Counts)
	repaired, ok := store.Get("A")
	require.True(t, ok)
	assert.NotEqual(t, stale.Ref, repaired.Ref)
	_, err = acc.Get(ctx, repaired.Ref)
	assert.NoError(t, err)
}

func TestUnmappedLiveAssetIsAdopted(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	ref := acc.Seed(catalog.Asset{
		Type:       catalog.TypeCollection,
		Stereotype: "unit",
		Label:      "Unit A",
		Properties: map[string]string{"unit_id": "A"},
	})
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	result, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A"}})
	require.NoError(t, err)

	// No duplicate creation; the existing asset is bound to the key.
	assert.Equal(t, Counts{Unchanged: 1}, result.Counts)
	entry, ok := store.Get("A")
	require.True(t, ok)
	assert.Equal(t, ref, entry.Ref)
}

func TestRemoteErrorOnOneItemContinuesRun(t *testing.T) {
	ctx := context.Background()
	acc := &flakyAccessor{Accessor: memory.New(), failLabel: "Unit B"}
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	result, err := r.Run(ctx, []Record{
		{Key: "A", Label: "Unit A"},
		{Key: "B", Label: "Unit B"},
		{Key: "C", Label: "Unit C"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusWarning, result.Status)
	assert.Equal(t, Counts{Created: 2, Errors: 1}, result.Counts)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "B", result.Errors[0].Key)
	_, ok := store.Get("B")
	assert.False(t, ok, "failed create must not leave a mapping entry")
}

func TestUnknownTypeRecordIsSkipped(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	result, err := r.Run(ctx, []Record{
		{Key: "A", Label: "Unit A"},
		{Key: "X", Label: "Mystery", Fields: map[string]string{"kind": "unknown"}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusWarning, result.Status)
	assert.Equal(t, Counts{Created: 1, Errors: 1}, result.Counts)
	_, ok := store.Get("X")
	assert.False(t, ok)
}

func TestChildDiffByCode(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{composite: true}, acc, store)

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A", Children: []catalog.Child{
		{Code: "c1", Fields: map[string]string{"label": "One", "datatype": "text"}},
		{Code: "c2", Fields: map[string]string{"label": "Two", "datatype": "int"}},
	}}})
	require.NoError(t, err)

	result, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A", Children: []catalog.Child{
		{Code: "c1", Fields: map[string]string{"label": "One renamed", "datatype": "text"}},
		{Code: "c3", Fields: map[string]string{"label": "Three", "datatype": "double"}},
	}}})
	require.NoError(t, err)

	assert.Equal(t, Counts{Updated: 1}, result.Counts)
	require.Len(t, result.Updated, 1)
	item := result.Updated[0]
	assert.Equal(t, []string{"c3"}, item.ChildrenCreated)
	assert.Equal(t, []string{"c1"}, item.ChildrenUpdated)
	assert.Equal(t, []string{"c2"}, item.ChildrenDeleted)

	entry, _ := store.Get("A")
	children, err := acc.ListChildren(ctx, entry.Ref)
	require.NoError(t, err)
	codes := make([]string, len(children))
	for i, c := range children {
		codes[i] = c.Code
	}
	assert.ElementsMatch(t, []string{"c1", "c3"}, codes)
}

func TestParentMoveUpdatesAssetAndMapping(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	store := newStore(t)
	r := newReconciler(t, &testFamily{}, acc, store)

	_, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A", ParentPath: "Regierungsrat"}})
	require.NoError(t, err)

	result, err := r.Run(ctx, []Record{{Key: "A", Label: "Unit A", ParentPath: "Regierungsrat/Finanzdepartement"}})
	require.NoError(t, err)

	assert.Equal(t, Counts{Updated: 1}, result.Counts)
	entry, _ := store.Get("A")
	assert.Equal(t, "Regierungsrat/Finanzdepartement", entry.ParentPath)
	got, err := acc.Get(ctx, entry.Ref)
	require.NoError(t, err)
	assert.Equal(t, "Regierungsrat/Finanzdepartement", got.ParentPath)

	// The move round-trips through the persisted file.
	reloaded := mapping.NewStore(store.Path())
	require.NoError(t, reloaded.Load())
	persisted, ok := reloaded.Get("A")
	require.True(t, ok)
	assert.Equal(t, "Regierungsrat/Finanzdepartement", persisted.ParentPath)
}

func TestRecordWithoutKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	acc := memory.New()
	r := newReconciler(t, &testFamily{}, acc, newStore(t))

	result, err := r.Run(ctx, []Record{{Key: "", Label: "nameless"}})
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, result.Status)
	assert.Equal(t, Counts{Errors: 1}, result.Counts)
}
