package sync

import (
	"time"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
)

// options configures a Reconciler.
type options struct {
	pacing       time.Duration
	createStatus catalog.Status
}

func defaultOptions() *options {
	return &options{
		createStatus: catalog.StatusWorking,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func newOptions(opts ...Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithPacing sets a fixed delay inserted after every catalog mutation to
// respect the target's rate limits. Zero disables pacing.
func WithPacing(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.NewValidationError("pacing", d, "must not be negative")
		}
		o.pacing = d
		return nil
	}
}

// WithCreateStatus sets the lifecycle status newly created assets get.
// Defaults to the catalog's draft state.
func WithCreateStatus(status catalog.Status) Option {
	return func(o *options) error {
		if status == "" {
			return errors.NewValidationError("createStatus", status, "must not be empty")
		}
		o.createStatus = status
		return nil
	}
}
