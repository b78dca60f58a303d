package sync

import (
	"time"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/diff"
)

// Status is the overall outcome of a run.
type Status string

// Run outcomes.
const (
	// StatusSuccess means the run completed without any item errors.
	StatusSuccess Status = "success"

	// StatusWarning means the run completed but some items failed and
	// were skipped.
	StatusWarning Status = "warning"

	// StatusError means the run aborted before completing; no
	// mutations beyond those already recorded were applied.
	StatusError Status = "error"
)

// DeleteMode records how a delete candidate was handled.
type DeleteMode string

// Delete modes.
const (
	// DeleteHard means the asset was removed from the catalog along
	// with its mapping entry.
	DeleteHard DeleteMode = "hard"

	// DeleteReview means the asset was flagged for human review
	// instead of being removed; its mapping entry is retained.
	DeleteReview DeleteMode = "review"
)

// Item is the per-item change detail recorded for the run report.
type Item struct {
	Key string      `json:"key"`
	Ref catalog.Ref `json:"uuid,omitempty"`

	// Changes lists the parent-level field changes of an update.
	Changes []diff.FieldChange `json:"changes,omitempty"`

	// Child codes touched during the item's child diff.
	ChildrenCreated []string `json:"children_created,omitempty"`
	ChildrenUpdated []string `json:"children_updated,omitempty"`
	ChildrenDeleted []string `json:"children_deleted,omitempty"`

	// DeleteMode is set on deleted items only.
	DeleteMode DeleteMode `json:"delete_mode,omitempty"`
}

// ItemError is one per-item failure. The run continues past these; they
// surface the run as a warning.
type ItemError struct {
	Key       string `json:"key"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// Counts summarizes a run.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Errors    int `json:"errors"`
}

// Result is the full outcome of one reconciliation run: status, counts,
// and per-item detail. It is the engine's entire output contract toward
// reporting.
type Result struct {
	Family     string    `json:"family"`
	Status     Status    `json:"status"`
	Initial    bool      `json:"initial_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Counts     Counts    `json:"counts"`

	Created   []Item      `json:"created,omitempty"`
	Updated   []Item      `json:"updated,omitempty"`
	Unchanged []Item      `json:"unchanged,omitempty"`
	Deleted   []Item      `json:"deleted,omitempty"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// HasChanges reports whether the run applied any mutation.
func (r *Result) HasChanges() bool {
	return r.Counts.Created+r.Counts.Updated+r.Counts.Deleted > 0
}

func (r *Result) recordError(key, operation string, err error) {
	r.Errors = append(r.Errors, ItemError{Key: key, Operation: operation, Message: err.Error()})
}

// finish stamps the end time and derives counts and status. Leaves an
// already set error status alone.
func (r *Result) finish() {
	r.FinishedAt = time.Now()
	r.Counts = Counts{
		Created:   len(r.Created),
		Updated:   len(r.Updated),
		Unchanged: len(r.Unchanged),
		Deleted:   len(r.Deleted),
		Errors:    len(r.Errors),
	}
	if r.Status == StatusError {
		return
	}
	if len(r.Errors) > 0 {
		r.Status = StatusWarning
		return
	}
	r.Status = StatusSuccess
}
