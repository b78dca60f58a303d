package dataspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
)

func newTestAccessor(t *testing.T, handler http.HandlerFunc) *Accessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(transport.New(srv.URL, nil), "datenkatalog")
}

func TestGetTranslatesWireFormat(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/assets/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(wireAsset{
			ID:           "abc",
			Type:         "Collection",
			Label:        "Finanzdepartement",
			Status:       "PUBLISHED",
			Stereotype:   "organisationseinheit",
			InCollection: "Regierungsrat",
			CustomProperties: map[string]string{
				"id_im_staatskalender": "42",
			},
		})
	})

	asset, err := acc.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, catalog.TypeCollection, asset.Type)
	assert.Equal(t, catalog.StatusPublished, asset.Status)
	assert.Equal(t, "Regierungsrat", asset.ParentPath)
	assert.Equal(t, "42", asset.Property("id_im_staatskalender"))
}

func TestGetMissingAsset(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := acc.Get(context.Background(), "gone")
	assert.True(t, errors.IsNotFound(err))
}

func TestCreatePostsToScheme(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/schemes/datenkatalog/assets", r.URL.Path)

		var body wireAsset
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Collection", body.Type)
		assert.Equal(t, "WORKING", body.Status)

		body.ID = "new-id"
		_ = json.NewEncoder(w).Encode(body)
	})

	created, err := acc.Create(context.Background(), catalog.Payload{
		Type:   catalog.TypeCollection,
		Label:  "Neu",
		Status: catalog.StatusWorking,
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.Ref("new-id"), created.ID)
}

func TestUpdateMergeUsesPatch(t *testing.T) {
	var method string
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_ = json.NewEncoder(w).Encode(wireAsset{ID: "abc", Type: "Dataset", Label: "x"})
	})

	_, err := acc.Update(context.Background(), "abc", catalog.Payload{Type: catalog.TypeDataset, Label: "x"}, true)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)

	_, err = acc.Update(context.Background(), "abc", catalog.Payload{Type: catalog.TypeDataset, Label: "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
}

func TestUpdateCarriesEmptyDescription(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// The field must be present so the service clears it.
		val, ok := body["description"]
		assert.True(t, ok)
		assert.Equal(t, "", val)
		_ = json.NewEncoder(w).Encode(wireAsset{ID: "abc", Type: "Dataset", Label: "x"})
	})

	_, err := acc.Update(context.Background(), "abc",
		catalog.Payload{Type: catalog.TypeDataset, Label: "x", Description: ""}, true)
	require.NoError(t, err)
}

func TestListFiltersByScope(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Collection", r.URL.Query().Get("type"))
		assert.Equal(t, "organisationseinheit", r.URL.Query().Get("stereotype"))
		_ = json.NewEncoder(w).Encode(map[string][]wireAsset{"assets": {
			{ID: "1", Type: "Collection", Stereotype: "organisationseinheit",
				CustomProperties: map[string]string{"id_im_staatskalender": "42"}},
			{ID: "2", Type: "Collection", Stereotype: "organisationseinheit"},
		}})
	})

	assets, err := acc.List(context.Background(), catalog.Scope{
		Type:        catalog.TypeCollection,
		Stereotype:  "organisationseinheit",
		KeyProperty: "id_im_staatskalender",
	})
	require.NoError(t, err)
	// The asset without the key property is outside the managed scope.
	require.Len(t, assets, 1)
	assert.Equal(t, catalog.Ref("1"), assets[0].ID)
}

func TestChildrenEndpoints(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			assert.Equal(t, "/api/assets/parent/attributes", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string][]wireChild{"attributes": {
				{ID: "c1", Label: "betrag_chf", Properties: map[string]string{"datatype": "double"}},
			}})
		case r.Method == http.MethodPost:
			var body wireChild
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body.ID = "c2"
			_ = json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodDelete:
			assert.Equal(t, "/api/attributes/c1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	ctx := context.Background()
	children, err := acc.ListChildren(ctx, "parent")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "betrag_chf", children[0].Code)

	created, err := acc.CreateChild(ctx, "parent", catalog.Child{Code: "jahr", Fields: map[string]string{"datatype": "int"}})
	require.NoError(t, err)
	assert.Equal(t, catalog.Ref("c2"), created.ID)

	require.NoError(t, acc.DeleteChild(ctx, "c1"))
}

func TestMarkForReviewPatchesStatusOnly(t *testing.T) {
	acc := newTestAccessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"status": "REVIEWDEL"}, body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, acc.MarkForReview(context.Background(), "abc"))
}
