// Package odsportal reads the dataset inventory of the open-data portal.
// It feeds two entity families: the dataset entries of the data catalog
// and the dataset compositions whose attribute children mirror the
// portal's column schemas.
package odsportal

import (
	"context"
	"fmt"

	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/sync"
)

// KeyProperty is the custom property carrying the portal dataset ID.
const KeyProperty = "ods_id"

// datatypes maps the portal's column types onto the catalog's attribute
// datatypes. A column type missing here cannot be represented and its
// record is skipped with an UnknownTypeError.
var datatypes = map[string]string{
	"text":         "TEXT",
	"int":          "INTEGER",
	"double":       "DECIMAL",
	"boolean":      "BOOLEAN",
	"date":         "DATE",
	"datetime":     "DATETIME",
	"geo_point_2d": "GEOPOINT",
	"geo_shape":    "GEOSHAPE",
	"file":         "FILE",
	"json_blob":    "JSON",
	"identifier":   "IDENTIFIER",
}

// Datatype resolves a portal column type.
func Datatype(portalType string) (string, bool) {
	dt, ok := datatypes[portalType]
	return dt, ok
}

type portalField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type portalDataset struct {
	DatasetID string `json:"dataset_id"`
	Metas     struct {
		Default struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Publisher   string `json:"publisher"`
		} `json:"default"`
	} `json:"metas"`
	Fields []portalField `json:"fields"`
}

// client wraps the catalog listing shared by both families.
type client struct {
	http     *transport.Client
	baseURL  string
	pageSize int
}

func (c *client) datasets(ctx context.Context) ([]portalDataset, error) {
	var all []portalDataset
	for offset := 0; ; offset += c.pageSize {
		path := fmt.Sprintf("/api/explore/v2.1/catalog/datasets?limit=%d&offset=%d", c.pageSize, offset)
		var page struct {
			TotalCount int             `json:"total_count"`
			Results    []portalDataset `json:"results"`
		}
		if err := c.http.Get(ctx, path, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if len(page.Results) < c.pageSize || len(all) >= page.TotalCount {
			break
		}
	}
	return all, nil
}

func (c *client) datasetURL(id string) string {
	return c.baseURL + "/explore/dataset/" + id
}

// DatasetReader feeds the dataset entries of the data catalog.
type DatasetReader struct {
	client
	parentPath string
}

// NewDatasetReader creates the dataset family's reader. parentPath is the
// collection the dataset entries live under.
func NewDatasetReader(http *transport.Client, baseURL, parentPath string) *DatasetReader {
	return &DatasetReader{
		client:     client{http: http, baseURL: baseURL, pageSize: 100},
		parentPath: parentPath,
	}
}

// Name implements sync.Family.
func (r *DatasetReader) Name() string { return "datasets" }

// Composite implements sync.Family.
func (r *DatasetReader) Composite() bool { return false }

// Scope implements sync.Family.
func (r *DatasetReader) Scope() catalog.Scope {
	return catalog.Scope{Type: catalog.TypeDataset, KeyProperty: KeyProperty}
}

// Desired implements sync.Family.
func (r *DatasetReader) Desired(rec sync.Record) (catalog.Payload, []catalog.Child, error) {
	props := map[string]string{KeyProperty: rec.Key}
	for _, name := range []string{"url", "publisher"} {
		if v := rec.Fields[name]; v != "" {
			props[name] = v
		}
	}
	return catalog.Payload{
		Type:        catalog.TypeDataset,
		Label:       rec.Label,
		Description: rec.Description,
		ParentPath:  rec.ParentPath,
		Properties:  props,
	}, nil, nil
}

// Fetch implements sync.Source.
func (r *DatasetReader) Fetch(ctx context.Context) ([]sync.Record, error) {
	datasets, err := r.datasets(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]sync.Record, 0, len(datasets))
	for _, ds := range datasets {
		records = append(records, sync.Record{
			Key:         ds.DatasetID,
			Label:       ds.Metas.Default.Title,
			Description: ds.Metas.Default.Description,
			ParentPath:  r.parentPath,
			Fields: map[string]string{
				"url":       r.datasetURL(ds.DatasetID),
				"publisher": ds.Metas.Default.Publisher,
			},
		})
	}
	return records, nil
}

// CompositionReader feeds the dataset compositions: one data object per
// portal dataset whose attribute children mirror the column schema.
type CompositionReader struct {
	client
	parentPath string
}

// NewCompositionReader creates the composition family's reader.
func NewCompositionReader(http *transport.Client, baseURL, parentPath string) *CompositionReader {
	return &CompositionReader{
		client:     client{http: http, baseURL: baseURL, pageSize: 100},
		parentPath: parentPath,
	}
}

// Name implements sync.Family.
func (r *CompositionReader) Name() string { return "dataset-compositions" }

// Composite implements sync.Family.
func (r *CompositionReader) Composite() bool { return true }

// Scope implements sync.Family.
func (r *CompositionReader) Scope() catalog.Scope {
	return catalog.Scope{Type: catalog.TypeDataObject, KeyProperty: KeyProperty}
}

// Desired implements sync.Family. Column types are resolved here so that
// a dataset with an unmappable column is skipped and counted instead of
// written half-translated.
func (r *CompositionReader) Desired(rec sync.Record) (catalog.Payload, []catalog.Child, error) {
	children := make([]catalog.Child, 0, len(rec.Children))
	for _, col := range rec.Children {
		dt, ok := Datatype(col.Field("portal_type"))
		if !ok {
			return catalog.Payload{}, nil,
				errors.NewUnknownTypeError(r.Name(), rec.Key, col.Field("portal_type"))
		}
		fields := map[string]string{"datatype": dt}
		if label := col.Field("label"); label != "" {
			fields["label"] = label
		}
		if desc := col.Field("description"); desc != "" {
			fields["description"] = desc
		}
		children = append(children, catalog.Child{Code: col.Code, Fields: fields})
	}
	return catalog.Payload{
		Type:       catalog.TypeDataObject,
		Label:      rec.Label,
		ParentPath: rec.ParentPath,
		Properties: map[string]string{KeyProperty: rec.Key},
	}, children, nil
}

// Fetch implements sync.Source.
func (r *CompositionReader) Fetch(ctx context.Context) ([]sync.Record, error) {
	datasets, err := r.datasets(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]sync.Record, 0, len(datasets))
	for _, ds := range datasets {
		children := make([]catalog.Child, 0, len(ds.Fields))
		for _, f := range ds.Fields {
			children = append(children, catalog.Child{
				Code: f.Name,
				Fields: map[string]string{
					"portal_type": f.Type,
					"label":       f.Label,
					"description": f.Description,
				},
			})
		}
		records = append(records, sync.Record{
			Key:        ds.DatasetID,
			Label:      ds.Metas.Default.Title,
			ParentPath: r.parentPath,
			Children:   children,
		})
	}
	return records, nil
}
