package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Supported GeoJSON geometry types.
const (
	GeometryPoint   = "Point"
	GeometryPolygon = "Polygon"
)

// Geometry is a GeoJSON geometry object. Coordinates stay raw until a
// representative point is requested, so malformed shapes surface per area
// instead of failing a whole listing.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseGeometry decodes a GeoJSON geometry document.
func ParseGeometry(data []byte) (Geometry, error) {
	var g Geometry
	if len(data) == 0 {
		return g, fmt.Errorf("%w: empty document", ErrInvalidGeometry)
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return g, nil
}

// PointGeometry builds a Point geometry for the coordinate.
func PointGeometry(c Coordinate) Geometry {
	raw, _ := json.Marshal([2]float64{c.Lon, c.Lat}) //nolint:errcheck // fixed-size float array always marshals
	return Geometry{Type: GeometryPoint, Coordinates: raw}
}

// PolygonGeometry builds a single-ring Polygon geometry from the vertices.
func PolygonGeometry(ring ...Coordinate) Geometry {
	positions := make([][2]float64, len(ring))
	for i, c := range ring {
		positions[i] = [2]float64{c.Lon, c.Lat}
	}
	raw, _ := json.Marshal([][][2]float64{positions}) //nolint:errcheck // nested float arrays always marshal
	return Geometry{Type: GeometryPolygon, Coordinates: raw}
}

// IsZero reports whether the geometry carries no shape at all.
func (g Geometry) IsZero() bool {
	return g.Type == "" && len(g.Coordinates) == 0
}

// RepresentativePoint returns the coordinate used for weather lookup: the
// point itself for a Point, the first vertex of the outer ring for a Polygon.
func (g Geometry) RepresentativePoint() (Coordinate, error) {
	if g.IsZero() {
		return Coordinate{}, fmt.Errorf("%w: empty geometry", ErrInvalidGeometry)
	}

	switch g.Type {
	case GeometryPoint:
		var pos []float64
		if err := json.Unmarshal(g.Coordinates, &pos); err != nil {
			return Coordinate{}, fmt.Errorf("%w: point: %v", ErrInvalidGeometry, err)
		}
		return positionToCoordinate(pos)
	case GeometryPolygon:
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return Coordinate{}, fmt.Errorf("%w: polygon: %v", ErrInvalidGeometry, err)
		}
		if len(rings) == 0 || len(rings[0]) == 0 {
			return Coordinate{}, fmt.Errorf("%w: polygon has no vertices", ErrInvalidGeometry)
		}
		return positionToCoordinate(rings[0][0])
	default:
		return Coordinate{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidGeometry, g.Type)
	}
}

// positionToCoordinate converts a GeoJSON [lon, lat] position.
func positionToCoordinate(pos []float64) (Coordinate, error) {
	if len(pos) < 2 {
		return Coordinate{}, fmt.Errorf("%w: position needs 2 values, got %d", ErrInvalidGeometry, len(pos))
	}
	c := Coordinate{Lon: pos[0], Lat: pos[1]}
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.Abs(c.Lat) > 90 || math.Abs(c.Lon) > 180 {
		return Coordinate{}, fmt.Errorf("%w: coordinate out of range (%g, %g)", ErrInvalidGeometry, c.Lat, c.Lon)
	}
	return c, nil
}
