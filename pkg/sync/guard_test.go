package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
)

func TestCheckRecordsReportsAllCollisions(t *testing.T) {
	records := []Record{
		{Key: "A", Label: "a1"},
		{Key: "A", Label: "a2"},
		{Key: "B", Label: "b1"},
		{Key: "C", Label: "c1"},
		{Key: "C", Label: "c2"},
		{Key: "C", Label: "c3"},
	}

	err := CheckRecords("units source", records)
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateKey(err))

	var dup *errors.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Len(t, dup.Collisions, 2)
	assert.Equal(t, "A", dup.Collisions[0].Key)
	assert.Equal(t, "C", dup.Collisions[1].Key)
	assert.Len(t, dup.Collisions[1].IDs, 3)
}

func TestCheckRecordsIgnoresEmptyKeys(t *testing.T) {
	records := []Record{
		{Key: "", Label: "x"},
		{Key: "", Label: "y"},
		{Key: "A", Label: "a"},
	}
	assert.NoError(t, CheckRecords("units source", records))
}

func TestCheckAssets(t *testing.T) {
	scope := catalog.Scope{Type: catalog.TypeCollection, KeyProperty: "unit_id"}
	assets := []catalog.Asset{
		{ID: "id-1", Type: catalog.TypeCollection, Properties: map[string]string{"unit_id": "A"}},
		{ID: "id-2", Type: catalog.TypeCollection, Properties: map[string]string{"unit_id": "A"}},
		{ID: "id-3", Type: catalog.TypeCollection, Properties: map[string]string{"unit_id": "B"}},
	}

	err := CheckAssets("units catalog", scope, assets)
	require.Error(t, err)

	var dup *errors.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Len(t, dup.Collisions, 1)
	assert.ElementsMatch(t, []string{"id-1", "id-2"}, dup.Collisions[0].IDs)
}
