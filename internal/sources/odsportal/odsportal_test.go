package odsportal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/sync"
)

func portalServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total_count":%d,"results":[`, total)
		first := true
		for i := offset; i < total && i < offset+limit; i++ {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `{"dataset_id":"10%04d","metas":{"default":{"title":"Dataset %d","publisher":"Statistisches Amt"}},
				"fields":[{"name":"jahr","label":"Jahr","type":"int"},{"name":"betrag","label":"Betrag","type":"double"}]}`, i, i)
		}
		fmt.Fprint(w, "]}")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDatasetReaderPaginates(t *testing.T) {
	srv := portalServer(t, 250)
	r := NewDatasetReader(transport.New(srv.URL, nil), "https://data.example", "Datenkatalog/Datensätze")

	records, err := r.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 250)
	assert.Equal(t, "100000", records[0].Key)
	assert.Equal(t, "https://data.example/explore/dataset/100000", records[0].Fields["url"])
	assert.Equal(t, "Datenkatalog/Datensätze", records[0].ParentPath)
}

func TestCompositionReaderBuildsChildren(t *testing.T) {
	srv := portalServer(t, 1)
	r := NewCompositionReader(transport.New(srv.URL, nil), "https://data.example", "Datenmodell")

	records, err := r.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Children, 2)
	assert.Equal(t, "jahr", records[0].Children[0].Code)
	assert.Equal(t, "int", records[0].Children[0].Field("portal_type"))
}

func TestCompositionDesiredMapsDatatypes(t *testing.T) {
	r := &CompositionReader{}
	rec := sync.Record{
		Key:   "100001",
		Label: "Budget",
		Children: []catalog.Child{
			{Code: "jahr", Fields: map[string]string{"portal_type": "int", "label": "Jahr"}},
			{Code: "ort", Fields: map[string]string{"portal_type": "geo_point_2d"}},
		},
	}

	payload, children, err := r.Desired(rec)
	require.NoError(t, err)
	assert.Equal(t, catalog.TypeDataObject, payload.Type)
	require.Len(t, children, 2)
	assert.Equal(t, "INTEGER", children[0].Field("datatype"))
	assert.Equal(t, "GEOPOINT", children[1].Field("datatype"))
}

func TestCompositionDesiredRejectsUnknownColumnType(t *testing.T) {
	r := &CompositionReader{}
	rec := sync.Record{
		Key: "100002",
		Children: []catalog.Child{
			{Code: "x", Fields: map[string]string{"portal_type": "quaternion"}},
		},
	}

	_, _, err := r.Desired(rec)
	require.Error(t, err)
	assert.True(t, errors.IsUnknownType(err))
}
