package geo

import (
	"encoding/json"
)

// Position is an [x, y] coordinate pair, i.e. longitude and latitude.
type Position [2]float64

// Polygon is a list of linear rings; the first is the exterior.
type Polygon [][]Position

// Shape is a GeoJSON Polygon or MultiPolygon.
type Shape struct {
	Type     string
	Polygons []Polygon
}

func (s Shape) MarshalJSON() ([]byte, error) {
	if s.Type == "Polygon" && len(s.Polygons) == 1 {
		return json.Marshal(struct {
			Type        string  `json:"type"`
			Coordinates Polygon `json:"coordinates"`
		}{s.Type, s.Polygons[0]})
	}
	return json.Marshal(struct {
		Type        string    `json:"type"`
		Coordinates []Polygon `json:"coordinates"`
	}{"MultiPolygon", s.Polygons})
}

// Feature is a GeoJSON feature resolved from a topology object. Features are
// shared between callers and must be treated as read-only.
type Feature struct {
	ID         string
	Properties map[string]any
	Geometry   *Shape

	// ProvinceID is the parent province of a municipality, when mapped.
	ProvinceID string
}

func (f Feature) MarshalJSON() ([]byte, error) {
	out := struct {
		Type       string         `json:"type"`
		ID         string         `json:"id,omitempty"`
		Properties map[string]any `json:"properties"`
		Geometry   *Shape         `json:"geometry"`
	}{
		Type:       "Feature",
		ID:         f.ID,
		Properties: f.Properties,
		Geometry:   f.Geometry,
	}
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	return json.Marshal(out)
}

// Mesh is a GeoJSON MultiLineString of boundary arcs.
type Mesh struct {
	Lines [][]Position
}

func (m Mesh) MarshalJSON() ([]byte, error) {
	lines := m.Lines
	if lines == nil {
		lines = [][]Position{}
	}
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Coordinates [][]Position `json:"coordinates"`
	}{"MultiLineString", lines})
}
