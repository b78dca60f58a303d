// Package mapping implements the identity mapping store: the durable
// binding between a source record's natural key and the catalog asset it
// produced. The store is the engine's memory across runs; losing it turns
// every source record back into an apparent creation.
//
// Entries persist as a CSV file with one row per natural key, sorted by
// key so that consecutive runs produce stable diffs under version control.
package mapping

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/logging"
)

// csv column layout, in order
var header = []string{"key", "_type", "uuid", "inCollection"}

// Entry binds one natural key to one catalog asset.
type Entry struct {
	// Key is the natural key of the source record.
	Key string

	// AssetType is the catalog type the asset was created as.
	AssetType catalog.Type

	// Ref is the catalog-assigned asset identifier.
	Ref catalog.Ref

	// ParentPath is the business-key path of the asset's containing
	// collection at the time of the last acknowledged mutation. Empty
	// for root-level assets.
	ParentPath string
}

// Store is an in-memory mapping table with explicit CSV persistence.
// It is not safe for concurrent use; the engine runs single-threaded
// per entity family.
type Store struct {
	path    string
	entries map[string]Entry
	loaded  bool
}

// NewStore creates a store backed by the CSV file at path. The file does
// not need to exist yet; a missing file means a first run.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		entries: make(map[string]Entry),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the backing CSV file into memory, replacing any in-memory
// state. A missing file is not an error; it leaves the store empty and
// marks the run as initial. Malformed rows are skipped with a warning
// rather than failing the run.
func (s *Store) Load() error {
	s.entries = make(map[string]Entry)
	s.loaded = false

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WrapIO("open", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return errors.WrapParse("csv", s.path, err)
	}

	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if len(row) < 3 {
			logging.Warn().Str("file", s.path).Int("row", i+1).Msg("skipping malformed mapping row")
			continue
		}
		entry := Entry{
			Key:       row[0],
			AssetType: catalog.Type(row[1]),
			Ref:       catalog.Ref(row[2]),
		}
		if len(row) > 3 {
			entry.ParentPath = row[3]
		}
		if err := validate(entry); err != nil {
			logging.Warn().Str("file", s.path).Int("row", i+1).Err(err).Msg("skipping invalid mapping row")
			continue
		}
		s.entries[entry.Key] = entry
	}
	s.loaded = true
	return nil
}

// Initial reports whether the backing file was absent at Load time,
// meaning this is the engine's first run against the target.
func (s *Store) Initial() bool {
	return !s.loaded
}

// Get returns the entry for a natural key.
func (s *Store) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Put inserts or replaces the entry for its key. The entry must carry a
// non-empty key and a valid UUID ref.
func (s *Store) Put(entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	s.entries[entry.Key] = entry
	return nil
}

// Remove deletes the entry for a natural key, if present.
func (s *Store) Remove(key string) {
	delete(s.entries, key)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Keys returns all natural keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns all entries ordered by key.
func (s *Store) All() []Entry {
	entries := make([]Entry, 0, len(s.entries))
	for _, k := range s.Keys() {
		entries = append(entries, s.entries[k])
	}
	return entries
}

// Persist writes the full mapping table to the backing file, sorted by
// key, replacing its previous content. It creates parent directories as
// needed. The write goes through a temp file and rename so a crash never
// leaves a truncated mapping behind.
func (s *Store) Persist() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.WrapIO("create", s.path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return errors.WrapIO("write", s.path, err)
	}
	for _, e := range s.All() {
		row := []string{e.Key, string(e.AssetType), e.Ref.String(), e.ParentPath}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return errors.WrapIO("write", s.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return errors.WrapIO("write", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("close", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.WrapIO("rename", s.path, err)
	}
	return nil
}

func validate(e Entry) error {
	if e.Key == "" {
		return errors.NewValidationError("key", "", "natural key must not be empty")
	}
	if _, err := uuid.Parse(e.Ref.String()); err != nil {
		return errors.NewValidationError("uuid", e.Ref.String(), "ref is not a valid UUID")
	}
	return nil
}
