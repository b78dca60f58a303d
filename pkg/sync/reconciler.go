package sync

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/diff"
	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/logging"
	"github.com/opendatabs/metasync/pkg/mapping"
)

// Reconciler drives one entity family's reconciliation against the target
// catalog. It owns the in-memory mapping for the duration of a run and is
// not safe for concurrent use.
type Reconciler struct {
	family  Family
	catalog catalog.Accessor
	store   *mapping.Store
	opts    *options
}

// New creates a Reconciler for one entity family.
func New(family Family, accessor catalog.Accessor, store *mapping.Store, opts ...Option) (*Reconciler, error) {
	if family == nil {
		return nil, errors.NewValidationError("family", nil, "must not be nil")
	}
	if accessor == nil {
		return nil, errors.NewValidationError("accessor", nil, "must not be nil")
	}
	if store == nil {
		return nil, errors.NewValidationError("store", nil, "must not be nil")
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		family:  family,
		catalog: accessor,
		store:   store,
		opts:    o,
	}, nil
}

// Run reconciles the given source records against the catalog:
//
//  1. Guard natural-key uniqueness on the source set and on the live
//     subtree. Any collision aborts before the first mutation and leaves
//     the mapping file untouched.
//  2. Per record: mapping lookup, live re-verification, field diff,
//     create or update, child diff for composite families. A failure on
//     one item is recorded and the run continues.
//  3. After all creates and updates, evaluate delete candidates: managed
//     assets whose key no longer appears in the source. Assets without
//     children are deleted, assets with children are flagged for review
//     and keep their mapping entry.
//  4. Persist the mapping once, then return the run result.
func (r *Reconciler) Run(ctx context.Context, records []Record) (*Result, error) {
	log := logging.Ctx(ctx).With().Str("family", r.family.Name()).Logger()
	result := &Result{
		Family:    r.family.Name(),
		Initial:   r.store.Initial(),
		StartedAt: time.Now(),
	}

	if err := CheckRecords(r.family.Name()+" source", records); err != nil {
		result.Status = StatusError
		result.finish()
		return result, err
	}

	scope := r.family.Scope()
	live, err := r.catalog.List(ctx, scope)
	if err != nil {
		result.Status = StatusError
		result.finish()
		return result, err
	}
	if err := CheckAssets(r.family.Name()+" catalog", scope, live); err != nil {
		result.Status = StatusError
		result.finish()
		return result, err
	}

	liveByKey := make(map[string]catalog.Ref, len(live))
	for i := range live {
		liveByKey[scope.Key(&live[i])] = live[i].ID
	}

	log.Info().
		Int("records", len(records)).
		Int("live_assets", len(live)).
		Int("mapped", r.store.Len()).
		Bool("initial", result.Initial).
		Msg("starting reconciliation")

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Key == "" {
			result.recordError("", "validate",
				errors.NewValidationError("key", rec.Label, "record has no natural key"))
			continue
		}
		seen[rec.Key] = true
		r.syncRecord(ctx, &log, rec, liveByKey, result)
	}

	r.deleteOrphans(ctx, &log, seen, liveByKey, result)

	if err := r.store.Persist(); err != nil {
		result.Status = StatusError
		result.finish()
		return result, err
	}

	result.finish()
	log.Info().
		Int("created", result.Counts.Created).
		Int("updated", result.Counts.Updated).
		Int("unchanged", result.Counts.Unchanged).
		Int("deleted", result.Counts.Deleted).
		Int("errors", result.Counts.Errors).
		Str("status", string(result.Status)).
		Msg("reconciliation finished")
	return result, nil
}

// syncRecord classifies one record as create, update, or unchanged and
// applies the resulting mutations.
func (r *Reconciler) syncRecord(ctx context.Context, log *zerolog.Logger, rec Record, liveByKey map[string]catalog.Ref, result *Result) {
	payload, children, err := r.family.Desired(rec)
	if err != nil {
		log.Warn().Str("key", rec.Key).Err(err).Msg("skipping record")
		result.recordError(rec.Key, "derive", err)
		return
	}

	entry, mapped := r.store.Get(rec.Key)
	var asset *catalog.Asset
	if mapped {
		asset, err = r.catalog.Get(ctx, entry.Ref)
		switch {
		case errors.IsNotFound(err):
			// The mapped asset is gone. Drop the stale entry and fall
			// through to the create path; the run self-heals.
			log.Warn().Str("key", rec.Key).Str("uuid", entry.Ref.String()).
				Msg("mapping points at missing asset, recreating")
			r.store.Remove(rec.Key)
			mapped = false
		case err != nil:
			result.recordError(rec.Key, "get", err)
			return
		}
	}

	if !mapped {
		if ref, inCatalog := liveByKey[rec.Key]; inCatalog {
			// The asset exists but the mapping lost it. Adopt it under
			// this key rather than creating a duplicate.
			asset, err = r.catalog.Get(ctx, ref)
			if err != nil {
				result.recordError(rec.Key, "get", err)
				return
			}
			entry = mapping.Entry{
				Key:        rec.Key,
				AssetType:  payload.Type,
				Ref:        ref,
				ParentPath: asset.ParentPath,
			}
			if err := r.store.Put(entry); err != nil {
				result.recordError(rec.Key, "map", err)
				return
			}
			log.Info().Str("key", rec.Key).Str("uuid", ref.String()).Msg("adopted unmapped asset")
			mapped = true
		}
	}

	if !mapped {
		r.createAsset(ctx, log, rec, payload, children, result)
		return
	}
	r.updateAsset(ctx, log, rec, entry, asset, payload, children, result)
}

func (r *Reconciler) createAsset(ctx context.Context, log *zerolog.Logger, rec Record, payload catalog.Payload, children []catalog.Child, result *Result) {
	payload.Status = r.opts.createStatus
	created, err := r.catalog.Create(ctx, payload)
	if err != nil {
		result.recordError(rec.Key, "create", err)
		return
	}
	r.pace(ctx)

	if err := r.store.Put(mapping.Entry{
		Key:        rec.Key,
		AssetType:  payload.Type,
		Ref:        created.ID,
		ParentPath: payload.ParentPath,
	}); err != nil {
		result.recordError(rec.Key, "map", err)
		return
	}

	item := Item{Key: rec.Key, Ref: created.ID}
	for _, child := range children {
		if _, err := r.catalog.CreateChild(ctx, created.ID, child); err != nil {
			result.recordError(rec.Key, "create child "+child.Code, err)
			continue
		}
		r.pace(ctx)
		item.ChildrenCreated = append(item.ChildrenCreated, child.Code)
	}
	log.Debug().Str("key", rec.Key).Str("uuid", created.ID.String()).Msg("created asset")
	result.Created = append(result.Created, item)
}

func (r *Reconciler) updateAsset(ctx context.Context, log *zerolog.Logger, rec Record, entry mapping.Entry, asset *catalog.Asset, payload catalog.Payload, children []catalog.Child, result *Result) {
	item := Item{Key: rec.Key, Ref: asset.ID}

	changes := diff.Fields(asset, payload)
	if asset.Status == catalog.StatusReviewDeletion {
		// The key reappeared after the asset was flagged for deletion
		// review. Take it back out of the review queue.
		payload.Status = r.opts.createStatus
		changes = append(changes, diff.FieldChange{
			Field: "status",
			Old:   string(asset.Status),
			New:   string(payload.Status),
		})
		log.Info().Str("key", rec.Key).Str("uuid", asset.ID.String()).
			Msg("restoring asset flagged for deletion review")
	}
	if len(changes) > 0 {
		if _, err := r.catalog.Update(ctx, asset.ID, payload, true); err != nil {
			result.recordError(rec.Key, "update", err)
			return
		}
		r.pace(ctx)
		item.Changes = changes

		// The update carried the new parent path; mirror it into the
		// mapping only after the catalog acknowledged the move.
		entry.ParentPath = payload.ParentPath
		entry.AssetType = payload.Type
		if err := r.store.Put(entry); err != nil {
			result.recordError(rec.Key, "map", err)
			return
		}
		log.Debug().Str("key", rec.Key).Int("fields", len(changes)).Msg("updated asset")
	}

	childChanged := false
	if r.family.Composite() {
		childChanged = r.syncChildren(ctx, rec.Key, asset.ID, children, &item, result)
	}

	if len(changes) > 0 || childChanged {
		result.Updated = append(result.Updated, item)
	} else {
		result.Unchanged = append(result.Unchanged, item)
	}
}

// syncChildren diffs the desired child list against the live one, matched
// by technical code. Reports whether anything changed.
func (r *Reconciler) syncChildren(ctx context.Context, key string, parent catalog.Ref, desired []catalog.Child, item *Item, result *Result) bool {
	liveChildren, err := r.catalog.ListChildren(ctx, parent)
	if err != nil {
		result.recordError(key, "list children", err)
		return false
	}
	liveByCode := make(map[string]catalog.Child, len(liveChildren))
	for _, c := range liveChildren {
		liveByCode[c.Code] = c
	}

	changed := false
	for _, want := range desired {
		current, ok := liveByCode[want.Code]
		if !ok {
			if _, err := r.catalog.CreateChild(ctx, parent, want); err != nil {
				result.recordError(key, "create child "+want.Code, err)
				continue
			}
			r.pace(ctx)
			item.ChildrenCreated = append(item.ChildrenCreated, want.Code)
			changed = true
			continue
		}
		delete(liveByCode, want.Code)

		if len(diff.ChildFields(current, want)) == 0 {
			continue
		}
		want.ID = current.ID
		if _, err := r.catalog.UpdateChild(ctx, current.ID, want); err != nil {
			result.recordError(key, "update child "+want.Code, err)
			continue
		}
		r.pace(ctx)
		item.ChildrenUpdated = append(item.ChildrenUpdated, want.Code)
		changed = true
	}

	// Live children the source no longer declares. Child items carry no
	// dependents of their own, so they are removed directly.
	leftover := make([]string, 0, len(liveByCode))
	for code := range liveByCode {
		leftover = append(leftover, code)
	}
	sort.Strings(leftover)
	for _, code := range leftover {
		if err := r.catalog.DeleteChild(ctx, liveByCode[code].ID); err != nil {
			result.recordError(key, "delete child "+code, err)
			continue
		}
		r.pace(ctx)
		item.ChildrenDeleted = append(item.ChildrenDeleted, code)
		changed = true
	}
	return changed
}

// deleteOrphans evaluates delete candidates last: every managed key, from
// the mapping or the live scope, that no source record claimed this run.
func (r *Reconciler) deleteOrphans(ctx context.Context, log *zerolog.Logger, seen map[string]bool, liveByKey map[string]catalog.Ref, result *Result) {
	candidates := make(map[string]catalog.Ref)
	for _, key := range r.store.Keys() {
		if !seen[key] {
			entry, _ := r.store.Get(key)
			candidates[key] = entry.Ref
		}
	}
	for key, ref := range liveByKey {
		if !seen[key] {
			if _, ok := candidates[key]; !ok {
				candidates[key] = ref
			}
		}
	}

	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ref := candidates[key]
		asset, err := r.catalog.Get(ctx, ref)
		if errors.IsNotFound(err) {
			// Already gone out-of-band; just forget it.
			r.store.Remove(key)
			continue
		}
		if err != nil {
			result.recordError(key, "get", err)
			continue
		}
		if asset.Status == catalog.StatusReviewDeletion {
			// Flagged in an earlier run, still awaiting human review.
			continue
		}

		children, err := r.catalog.ListChildren(ctx, ref)
		if err != nil {
			result.recordError(key, "list children", err)
			continue
		}

		if len(children) == 0 {
			if err := r.catalog.Delete(ctx, ref); err != nil {
				result.recordError(key, "delete", err)
				continue
			}
			r.pace(ctx)
			r.store.Remove(key)
			log.Info().Str("key", key).Str("uuid", ref.String()).Msg("deleted asset")
			result.Deleted = append(result.Deleted, Item{Key: key, Ref: ref, DeleteMode: DeleteHard})
			continue
		}

		// Non-empty structures are never destroyed automatically. The
		// mapping entry stays so a reappearing source record reuses the
		// same identity.
		if err := r.catalog.MarkForReview(ctx, ref); err != nil {
			result.recordError(key, "mark for review", err)
			continue
		}
		r.pace(ctx)
		log.Info().Str("key", key).Str("uuid", ref.String()).
			Int("children", len(children)).Msg("flagged asset for deletion review")
		result.Deleted = append(result.Deleted, Item{Key: key, Ref: ref, DeleteMode: DeleteReview})
	}
}

func (r *Reconciler) pace(ctx context.Context) {
	if r.opts.pacing <= 0 {
		return
	}
	t := time.NewTimer(r.opts.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
