// Package staatskalender reads organizational units from the cantonal
// staff directory and turns the flat parent-ID list into hierarchical
// source records. Units whose parent chain cannot be resolved are excluded
// together with their descendants rather than attached to a wrong place.
package staatskalender

import (
	"context"
	"fmt"
	"sort"

	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/logging"
	"github.com/opendatabs/metasync/pkg/sync"
)

// KeyProperty is the custom property carrying the directory ID.
const KeyProperty = "id_im_staatskalender"

// Unit is one organizational unit as the directory reports it.
type Unit struct {
	ID       string
	Title    string
	ParentID string
	URL      string
}

// Reader fetches units from the directory's dataset API and implements
// both sync.Source and sync.Family for them.
type Reader struct {
	client   *transport.Client
	dataset  string
	rootPath string
	pageSize int
}

// NewReader creates a reader for the directory dataset. rootPath is the
// collection path the whole hierarchy lives under.
func NewReader(client *transport.Client, dataset, rootPath string) *Reader {
	return &Reader{
		client:   client,
		dataset:  dataset,
		rootPath: rootPath,
		pageSize: 100,
	}
}

// Name implements sync.Family.
func (r *Reader) Name() string { return "org-units" }

// Composite implements sync.Family.
func (r *Reader) Composite() bool { return false }

// Scope implements sync.Family.
func (r *Reader) Scope() catalog.Scope {
	return catalog.Scope{
		Type:        catalog.TypeCollection,
		Stereotype:  "organisationseinheit",
		KeyProperty: KeyProperty,
	}
}

// Desired implements sync.Family.
func (r *Reader) Desired(rec sync.Record) (catalog.Payload, []catalog.Child, error) {
	props := map[string]string{KeyProperty: rec.Key}
	if url := rec.Fields["url_website"]; url != "" {
		props["url_website"] = url
	}
	return catalog.Payload{
		Type:       catalog.TypeCollection,
		Label:      rec.Label,
		Stereotype: "organisationseinheit",
		ParentPath: rec.ParentPath,
		Properties: props,
	}, nil, nil
}

// unitRow is the dataset API's record shape.
type unitRow struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id"`
	URL      string `json:"url_website"`
}

// Fetch implements sync.Source.
func (r *Reader) Fetch(ctx context.Context) ([]sync.Record, error) {
	var units []Unit
	for offset := 0; ; offset += r.pageSize {
		path := fmt.Sprintf("/api/explore/v2.1/catalog/datasets/%s/records?limit=%d&offset=%d",
			r.dataset, r.pageSize, offset)
		var page struct {
			TotalCount int       `json:"total_count"`
			Results    []unitRow `json:"results"`
		}
		if err := r.client.Get(ctx, path, &page); err != nil {
			return nil, err
		}
		for _, row := range page.Results {
			units = append(units, Unit{ID: row.ID, Title: row.Title, ParentID: row.ParentID, URL: row.URL})
		}
		if len(page.Results) < r.pageSize || len(units) >= page.TotalCount {
			break
		}
	}
	return BuildRecords(ctx, units, r.rootPath), nil
}

// BuildRecords resolves the parent chains of a flat unit list into source
// records ordered parents-first, so that each unit's containing collection
// exists by the time the unit is created. Units with a missing or cyclic
// parent chain are dropped along with everything below them.
func BuildRecords(ctx context.Context, units []Unit, rootPath string) []sync.Record {
	log := logging.Ctx(ctx)
	byID := make(map[string]Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	type resolved struct {
		unit  Unit
		depth int
		path  string
	}
	var ok []resolved

	for _, u := range units {
		titles := []string{}
		depth := 0
		current := u
		broken := false
		seen := map[string]bool{u.ID: true}
		for current.ParentID != "" {
			parent, exists := byID[current.ParentID]
			if !exists || seen[parent.ID] {
				broken = true
				break
			}
			seen[parent.ID] = true
			titles = append([]string{parent.Title}, titles...)
			depth++
			current = parent
		}
		if broken {
			log.Warn().Str("id", u.ID).Str("title", u.Title).
				Msg("excluding unit with unresolvable parent chain")
			continue
		}
		components := append([]string{}, titles...)
		path := catalog.JoinPath(components...)
		if rootPath != "" {
			if path == "" {
				path = rootPath
			} else {
				path = rootPath + "/" + path
			}
		}
		ok = append(ok, resolved{unit: u, depth: depth, path: path})
	}

	sort.Slice(ok, func(i, j int) bool {
		if ok[i].depth != ok[j].depth {
			return ok[i].depth < ok[j].depth
		}
		return ok[i].unit.Title < ok[j].unit.Title
	})

	records := make([]sync.Record, len(ok))
	for i, res := range ok {
		records[i] = sync.Record{
			Key:        res.unit.ID,
			Label:      res.unit.Title,
			ParentPath: res.path,
			Fields:     map[string]string{"url_website": res.unit.URL},
		}
	}
	return records
}
