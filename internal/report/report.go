// Package report turns run results into durable artifacts: one timestamped
// JSON file per run under the reports directory, plus a log summary. The
// files are what the downstream notification tooling picks up.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/logging"
	"github.com/opendatabs/metasync/pkg/sync"
)

// Writer persists run results.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a writer that stores reports under dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Write stores one run result and returns the report file path.
func (w *Writer) Write(ctx context.Context, result *sync.Result) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.WrapIO("mkdir", w.dir, err)
	}

	name := fmt.Sprintf("%s_%s.json", w.now().Format("20060102_150405"), result.Family)
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", errors.WrapParse("json", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.WrapIO("write", path, err)
	}

	logging.Ctx(ctx).Info().
		Str("family", result.Family).
		Str("status", string(result.Status)).
		Str("report", path).
		Int("created", result.Counts.Created).
		Int("updated", result.Counts.Updated).
		Int("unchanged", result.Counts.Unchanged).
		Int("deleted", result.Counts.Deleted).
		Int("errors", result.Counts.Errors).
		Msg("run report written")
	return path, nil
}
