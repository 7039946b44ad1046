package geo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"phtourism/internal/schema"
)

type provinceArcs struct {
	id   string
	refs []int
}

// Index resolves municipality and province features by identifier. It is
// immutable after construction and safe for concurrent use.
type Index struct {
	logger *slog.Logger

	municipalities map[string]*Feature
	provinces      map[string]*Feature
	land           *Feature
	ids            []string

	arcs         [][]Position
	provinceArcs []provinceArcs

	meshOnce sync.Once
	mesh     *Mesh
}

// Load parses a TopoJSON document and indexes it.
func Load(logger *slog.Logger, data []byte, mapping schema.Geography) (*Index, error) {
	topo, err := ParseTopology(data)
	if err != nil {
		return nil, err
	}
	return NewIndex(logger, topo, mapping)
}

// NewIndex builds the index from a decoded topology. A missing object, a
// geometry without its identifier property, or a duplicated municipality
// identifier fails with a *SchemaMismatchError.
func NewIndex(logger *slog.Logger, topo *Topology, mapping schema.Geography) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "geo_index"))

	ix := &Index{
		logger:         logger,
		municipalities: make(map[string]*Feature),
		provinces:      make(map[string]*Feature),
		arcs:           topo.DecodeArcs(),
	}

	if err := ix.indexMunicipalities(topo, mapping); err != nil {
		return nil, err
	}
	if err := ix.indexProvinces(topo, mapping); err != nil {
		return nil, err
	}
	if err := ix.indexLand(topo, mapping); err != nil {
		return nil, err
	}

	ix.ids = make([]string, 0, len(ix.municipalities))
	for id := range ix.municipalities {
		ix.ids = append(ix.ids, id)
	}
	slices.Sort(ix.ids)

	logger.Info("geo index built",
		slog.Int("arcs", len(ix.arcs)),
		slog.Int("municipalities", len(ix.municipalities)),
		slog.Int("provinces", len(ix.provinces)))

	return ix, nil
}

func object(topo *Topology, name string) ([]*Geometry, error) {
	obj, ok := topo.Objects[name]
	if !ok || obj == nil {
		return nil, objectMismatch(name, "object not found")
	}
	return obj.Members(), nil
}

func (ix *Index) indexMunicipalities(topo *Topology, mapping schema.Geography) error {
	name := mapping.MunicipalitiesObject
	members, err := object(topo, name)
	if err != nil {
		return err
	}

	for i, g := range members {
		id, err := geometryID(g, name, mapping.MunicipalityIDProperty, i)
		if err != nil {
			return err
		}
		if _, dup := ix.municipalities[id]; dup {
			return &SchemaMismatchError{Object: name, Property: mapping.MunicipalityIDProperty, Geometry: i,
				Reason: fmt.Sprintf("duplicate identifier %q", id)}
		}
		shape, err := ix.shape(g, name, i)
		if err != nil {
			return err
		}

		f := &Feature{ID: id, Properties: g.Properties, Geometry: shape}
		if p := mapping.ParentProvinceProperty; p != "" {
			if parent, err := propertyString(g.Properties[p]); err == nil {
				f.ProvinceID = parent
			}
		}
		ix.municipalities[id] = f
	}
	return nil
}

// indexProvinces keys provinces by identifier. Several geometries sharing one
// identifier are merged into a single MultiPolygon feature.
func (ix *Index) indexProvinces(topo *Topology, mapping schema.Geography) error {
	name := mapping.ProvincesObject
	members, err := object(topo, name)
	if err != nil {
		return err
	}

	for i, g := range members {
		id, err := geometryID(g, name, mapping.ProvinceIDProperty, i)
		if err != nil {
			return err
		}
		shape, err := ix.shape(g, name, i)
		if err != nil {
			return err
		}
		refs, _ := g.polygonArcs()
		ix.provinceArcs = append(ix.provinceArcs, provinceArcs{id: id, refs: flatten(refs)})

		existing, ok := ix.provinces[id]
		if !ok {
			ix.provinces[id] = &Feature{ID: id, Properties: g.Properties, Geometry: shape}
			continue
		}
		existing.Geometry = mergeShapes(existing.Geometry, shape)
	}
	return nil
}

func (ix *Index) indexLand(topo *Topology, mapping schema.Geography) error {
	name := mapping.LandObject
	members, err := object(topo, name)
	if err != nil {
		return err
	}

	var merged *Shape
	for i, g := range members {
		shape, err := ix.shape(g, name, i)
		if err != nil {
			return err
		}
		merged = mergeShapes(merged, shape)
	}
	if merged != nil {
		merged.Type = "MultiPolygon"
	}
	ix.land = &Feature{Geometry: merged}
	return nil
}

func (ix *Index) shape(g *Geometry, objectName string, pos int) (*Shape, error) {
	polys, err := g.polygonArcs()
	if err != nil {
		return nil, &SchemaMismatchError{Object: objectName, Geometry: pos, Reason: err.Error()}
	}
	if polys == nil {
		return nil, nil
	}

	shape := &Shape{Type: g.Type, Polygons: make([]Polygon, 0, len(polys))}
	for _, rings := range polys {
		poly := make(Polygon, 0, len(rings))
		for _, refs := range rings {
			ring, err := stitchRing(ix.arcs, refs)
			if err != nil {
				return nil, &SchemaMismatchError{Object: objectName, Geometry: pos, Reason: err.Error()}
			}
			poly = append(poly, ring)
		}
		shape.Polygons = append(shape.Polygons, poly)
	}
	return shape, nil
}

func mergeShapes(a, b *Shape) *Shape {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	polys := make([]Polygon, 0, len(a.Polygons)+len(b.Polygons))
	polys = append(polys, a.Polygons...)
	polys = append(polys, b.Polygons...)
	return &Shape{Type: "MultiPolygon", Polygons: polys}
}

func flatten(polys [][][]int) []int {
	var out []int
	for _, rings := range polys {
		for _, ring := range rings {
			out = append(out, ring...)
		}
	}
	return out
}

func geometryID(g *Geometry, objectName, property string, pos int) (string, error) {
	v, ok := g.Properties[property]
	if !ok {
		return "", &SchemaMismatchError{Object: objectName, Property: property, Geometry: pos, Reason: "missing identifier property"}
	}
	id, err := propertyString(v)
	if err != nil {
		return "", &SchemaMismatchError{Object: objectName, Property: property, Geometry: pos, Reason: err.Error()}
	}
	return id, nil
}

// propertyString renders an identifier property. Numbers lose exponents and
// trailing zeros so that 101, 101.0 and 1.01e2 all become "101".
func propertyString(v any) (string, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			s = strconv.FormatFloat(f, 'f', -1, 64)
		} else {
			s = val.String()
		}
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return "", fmt.Errorf("identifier must be a string or number, got %T", v)
	}
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	return s, nil
}

// FeatureFor returns the municipality feature with the given identifier. The
// error wraps ErrNotFound when the identifier has no geometry.
func (ix *Index) FeatureFor(id string) (*Feature, error) {
	f, ok := ix.municipalities[id]
	if !ok {
		return nil, fmt.Errorf("municipality %q: %w", id, ErrNotFound)
	}
	return f, nil
}

// Has reports whether the municipality identifier has a geometry.
func (ix *Index) Has(id string) bool {
	_, ok := ix.municipalities[id]
	return ok
}

// ProvinceFor returns the province feature keyed by its identifier.
func (ix *Index) ProvinceFor(id string) (*Feature, error) {
	f, ok := ix.provinces[id]
	if !ok {
		return nil, fmt.Errorf("province %q: %w", id, ErrNotFound)
	}
	return f, nil
}

// Land returns the national outline as a single MultiPolygon feature.
func (ix *Index) Land() *Feature {
	return ix.land
}

// IDs returns the sorted municipality identifiers.
func (ix *Index) IDs() []string {
	return slices.Clone(ix.ids)
}

// ProvinceIDs returns the sorted province identifiers.
func (ix *Index) ProvinceIDs() []string {
	ids := make([]string, 0, len(ix.provinces))
	for id := range ix.provinces {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of indexed municipalities.
func (ix *Index) Len() int {
	return len(ix.municipalities)
}

// ProvinceMesh returns the internal province borders: every arc whose first
// and last province geometries have different identifiers. The mesh is built
// on first use and shared afterwards.
func (ix *Index) ProvinceMesh() *Mesh {
	ix.meshOnce.Do(func() {
		ix.mesh = ix.buildProvinceMesh()
		ix.logger.Debug("province mesh built", slog.Int("lines", len(ix.mesh.Lines)))
	})
	return ix.mesh
}

func (ix *Index) buildProvinceMesh() *Mesh {
	first := make(map[int]string)
	last := make(map[int]string)
	for _, pa := range ix.provinceArcs {
		for _, ref := range pa.refs {
			idx, _ := arcIndex(ref)
			if _, seen := first[idx]; !seen {
				first[idx] = pa.id
			}
			last[idx] = pa.id
		}
	}

	shared := make([]int, 0, len(first))
	for idx, id := range first {
		if last[idx] != id {
			shared = append(shared, idx)
		}
	}
	slices.Sort(shared)

	mesh := &Mesh{Lines: make([][]Position, 0, len(shared))}
	for _, idx := range shared {
		if idx < len(ix.arcs) {
			mesh.Lines = append(mesh.Lines, slices.Clone(ix.arcs[idx]))
		}
	}
	return mesh
}
