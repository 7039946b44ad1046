package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Topology is a decoded TopoJSON document. Arcs are kept as stored; use
// DecodeArcs to obtain absolute coordinates.
type Topology struct {
	Type      string               `json:"type"`
	Transform *Transform           `json:"transform,omitempty"`
	Arcs      [][][]float64        `json:"arcs"`
	Objects   map[string]*Geometry `json:"objects"`
}

// Transform describes quantized, delta-encoded arcs.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Geometry is a TopoJSON geometry object. Arcs holds arc references whose
// nesting depends on Type.
type Geometry struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Arcs       json.RawMessage `json:"arcs,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
	Geometries []*Geometry     `json:"geometries,omitempty"`
}

// ParseTopology decodes a TopoJSON document. Property values keep their JSON
// number text so numeric identifiers survive unchanged.
func ParseTopology(data []byte) (*Topology, error) {
	return DecodeTopology(bytes.NewReader(data))
}

// DecodeTopology reads a TopoJSON document from r.
func DecodeTopology(r io.Reader) (*Topology, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var topo Topology
	if err := dec.Decode(&topo); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	if topo.Type != "Topology" {
		return nil, &SchemaMismatchError{Geometry: -1, Reason: fmt.Sprintf("document type is %q, want \"Topology\"", topo.Type)}
	}
	return &topo, nil
}

// DecodeArcs returns every arc in absolute coordinates, undoing quantization
// and delta encoding when the topology has a transform.
func (t *Topology) DecodeArcs() [][]Position {
	out := make([][]Position, len(t.Arcs))
	for i, arc := range t.Arcs {
		line := make([]Position, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t.Transform == nil {
				line = append(line, Position{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			line = append(line, Position{
				x*t.Transform.Scale[0] + t.Transform.Translate[0],
				y*t.Transform.Scale[1] + t.Transform.Translate[1],
			})
		}
		out[i] = line
	}
	return out
}

// Members returns the geometries of an object: the collection members, or the
// object itself when it is a single geometry.
func (g *Geometry) Members() []*Geometry {
	if g.Type == "GeometryCollection" {
		return g.Geometries
	}
	return []*Geometry{g}
}

// polygonArcs returns the arc references of a Polygon or MultiPolygon as a
// list of polygons, each a list of rings. Null geometries yield nil.
func (g *Geometry) polygonArcs() ([][][]int, error) {
	switch g.Type {
	case "", "null":
		return nil, nil
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, fmt.Errorf("polygon arcs: %w", err)
		}
		return [][][]int{rings}, nil
	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, fmt.Errorf("multipolygon arcs: %w", err)
		}
		return polys, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
}

// arcIndex resolves a possibly negative arc reference. ~i means arc i reversed.
func arcIndex(ref int) (int, bool) {
	if ref < 0 {
		return ^ref, true
	}
	return ref, false
}

// stitchRing joins arcs into a ring. The point shared by consecutive arcs is
// emitted once.
func stitchRing(arcs [][]Position, refs []int) ([]Position, error) {
	var ring []Position
	for _, ref := range refs {
		idx, reversed := arcIndex(ref)
		if idx >= len(arcs) {
			return nil, fmt.Errorf("arc %d out of range (%d arcs)", idx, len(arcs))
		}
		arc := arcs[idx]
		for k := range arc {
			p := arc[k]
			if reversed {
				p = arc[len(arc)-1-k]
			}
			if k == 0 && len(ring) > 0 {
				continue
			}
			ring = append(ring, p)
		}
	}
	return ring, nil
}
