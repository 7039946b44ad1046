package geo

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phtourism/internal/schema"
	"phtourism/internal/shared/testutil"
)

func loadFixture(t *testing.T, doc string, mapping schema.Geography) (*Index, error) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return Load(logger, []byte(doc), mapping)
}

func mustFixture(t *testing.T) *Index {
	t.Helper()
	ix, err := loadFixture(t, testutil.Topology, schema.Default().Geography)
	require.NoError(t, err)
	return ix
}

func TestIndex_FeatureFor(t *testing.T) {
	ix := mustFixture(t)

	f, err := ix.FeatureFor("0101")
	require.NoError(t, err)
	assert.Equal(t, "0101", f.ID)
	assert.Equal(t, "Alpha", f.Properties["NAME_2"])
	assert.Equal(t, "01", f.ProvinceID)
	require.NotNil(t, f.Geometry)
	assert.Equal(t, "Polygon", f.Geometry.Type)
	assert.Equal(t, Polygon{{{1, 1}, {1, 0}, {0, 0}, {0, 1}, {1, 1}}}, f.Geometry.Polygons[0])

	_, err = ix.FeatureFor("9999")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, ix.Has("9999"))
	assert.True(t, ix.Has("0201"))
}

func TestIndex_RingsAreClosed(t *testing.T) {
	ix := mustFixture(t)

	for _, id := range ix.IDs() {
		f, err := ix.FeatureFor(id)
		require.NoError(t, err)
		for _, poly := range f.Geometry.Polygons {
			for _, ring := range poly {
				require.GreaterOrEqual(t, len(ring), 4, id)
				assert.Equal(t, ring[0], ring[len(ring)-1], "ring of %s must close", id)
			}
		}
	}
}

func TestIndex_ProvincesAndLand(t *testing.T) {
	ix := mustFixture(t)

	assert.Equal(t, []string{"0101", "0102", "0201"}, ix.IDs())
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, []string{"01", "02"}, ix.ProvinceIDs())

	p, err := ix.ProvinceFor("01")
	require.NoError(t, err)
	assert.Equal(t, "North", p.Properties["NAME_1"])

	_, err = ix.ProvinceFor("03")
	assert.ErrorIs(t, err, ErrNotFound)

	land := ix.Land()
	require.NotNil(t, land.Geometry)
	assert.Equal(t, "MultiPolygon", land.Geometry.Type)
	assert.Equal(t, Polygon{{{1, 0}, {0, 0}, {0, 1}, {1, 1}, {2, 1}, {3, 1}, {3, 0}, {2, 0}, {1, 0}}}, land.Geometry.Polygons[0])
}

func TestIndex_ProvinceMesh(t *testing.T) {
	ix := mustFixture(t)

	mesh := ix.ProvinceMesh()
	require.NotNil(t, mesh)
	assert.Equal(t, [][]Position{{{2, 0}, {2, 1}}}, mesh.Lines,
		"only the arc between provinces 01 and 02 is a province border")

	data, err := json.Marshal(mesh)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MultiLineString","coordinates":[[[2,0],[2,1]]]}`, string(data))
}

func TestIndex_ProvinceMeshComputedOnce(t *testing.T) {
	ix := mustFixture(t)

	var wg sync.WaitGroup
	results := make([]*Mesh, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ix.ProvinceMesh()
		}(i)
	}
	wg.Wait()

	for _, m := range results {
		assert.Same(t, results[0], m)
	}
}

func TestIndex_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		mutate      func(*schema.Geography)
		errContains string
	}{
		{
			name:        "missing municipality id property",
			doc:         strings.Replace(testutil.Topology, `"CC_2_MOD": "0102"`, `"CODE": "0102"`, 1),
			errContains: `property "CC_2_MOD": missing identifier property`,
		},
		{
			name:        "missing province id property",
			doc:         strings.Replace(testutil.Topology, `"CC_1": "02", "NAME_1"`, `"NAME_1"`, 1),
			errContains: `object "provinces" geometry 1 property "CC_1"`,
		},
		{
			name:        "missing object",
			doc:         testutil.Topology,
			mutate:      func(g *schema.Geography) { g.MunicipalitiesObject = "barangays" },
			errContains: `object "barangays": object not found`,
		},
		{
			name:        "duplicate municipality id",
			doc:         strings.Replace(testutil.Topology, `"CC_2_MOD": "0102"`, `"CC_2_MOD": "0101"`, 1),
			errContains: `duplicate identifier "0101"`,
		},
		{
			name:        "boolean id",
			doc:         strings.Replace(testutil.Topology, `"CC_2_MOD": "0102"`, `"CC_2_MOD": true`, 1),
			errContains: "must be a string or number",
		},
		{
			name:        "arc out of range",
			doc:         strings.Replace(testutil.Topology, `"arcs": [[1,5]], "properties": {"CC_2_MOD"`, `"arcs": [[1,17]], "properties": {"CC_2_MOD"`, 1),
			errContains: "arc 17 out of range",
		},
		{
			name:        "not a topology",
			doc:         `{"type":"FeatureCollection","features":[]}`,
			errContains: `document type is "FeatureCollection"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping := schema.Default().Geography
			if tt.mutate != nil {
				tt.mutate(&mapping)
			}

			ix, err := loadFixture(t, tt.doc, mapping)

			assert.Nil(t, ix)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaMismatch))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestIndex_NumericIdentifiers(t *testing.T) {
	doc := strings.Replace(testutil.Topology, `"CC_2_MOD": "0201"`, `"CC_2_MOD": 201.0`, 1)

	ix, err := loadFixture(t, doc, schema.Default().Geography)
	require.NoError(t, err)

	_, err = ix.FeatureFor("201")
	assert.NoError(t, err)
}

func TestIndex_InvalidJSON(t *testing.T) {
	_, err := loadFixture(t, `{"type":`, schema.Default().Geography)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSchemaMismatch))
}

func TestDecodeArcs_Quantized(t *testing.T) {
	topo, err := ParseTopology([]byte(`{
		"type": "Topology",
		"transform": {"scale": [0.5, 0.5], "translate": [100, 10]},
		"arcs": [[[0,0],[2,0],[0,2]]],
		"objects": {}
	}`))
	require.NoError(t, err)

	assert.Equal(t, [][]Position{{{100, 10}, {101, 10}, {101, 11}}}, topo.DecodeArcs())
}

func TestFeatureJSON(t *testing.T) {
	ix := mustFixture(t)
	f, err := ix.FeatureFor("0201")
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Feature", decoded["type"])
	assert.Equal(t, "0201", decoded["id"])

	geometry := decoded["geometry"].(map[string]any)
	assert.Equal(t, "Polygon", geometry["type"])

	nullGeometry, err := json.Marshal(Feature{ID: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Feature","id":"x","properties":{},"geometry":null}`, string(nullGeometry))
}
