// Package geojson provides the GeoJSON geometry types and utilities used for
// burst footprints: bounding boxes, footprint unions, tolerance-based
// comparison, and WKT conversion for catalog search parameters.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Point returns the coordinates as a Point [lon, lat].
// Returns error if geometry is not a Point.
func (g *Geometry) Point() ([]float64, error) {
	if g.Type != "Point" {
		return nil, fmt.Errorf("geometry is not a Point, got %s", g.Type)
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Point coordinates: %w", err)
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("invalid Point coordinates: expected at least 2 values, got %d", len(coords))
	}
	return coords, nil
}

// Polygon returns the coordinates as a Polygon [][][lon, lat].
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([][][]float64, error) {
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}
	return coords, nil
}

// Exterior returns the outer ring of a Polygon geometry.
func (g *Geometry) Exterior() ([][]float64, error) {
	rings, err := g.Polygon()
	if err != nil {
		return nil, err
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("polygon has no rings")
	}
	return rings[0], nil
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)

	accumulate := func(point []float64) {
		if len(point) < 2 {
			return
		}
		minLon = math.Min(minLon, point[0])
		maxLon = math.Max(maxLon, point[0])
		minLat = math.Min(minLat, point[1])
		maxLat = math.Max(maxLat, point[1])
	}

	switch g.Type {
	case "Point":
		coords, err := g.Point()
		if err != nil {
			return nil, err
		}
		return []float64{coords[0], coords[1], coords[0], coords[1]}, nil

	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		for _, ring := range coords {
			for _, point := range ring {
				accumulate(point)
			}
		}

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}

	if math.IsInf(minLon, 0) || math.IsInf(minLat, 0) {
		return nil, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}

	return []float64{minLon, minLat, maxLon, maxLat}, nil
}

// NewPolygonFromBBox creates a polygon geometry from a bounding box.
// bbox should be [west, south, east, north].
func NewPolygonFromBBox(bbox []float64) (*Geometry, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(bbox))
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]
	coords := [][][]float64{
		{
			{west, south},
			{east, south},
			{east, north},
			{west, north},
			{west, south}, // Close the ring
		},
	}

	return newPolygon(coords)
}

// NewPolygonFromPoints creates a polygon geometry from an unordered set of
// [lon, lat] points by taking their bounding rectangle. Used for swath
// footprints derived from geolocation grid points.
func NewPolygonFromPoints(points [][]float64) (*Geometry, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points provided")
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, point := range points {
		if len(point) < 2 {
			return nil, fmt.Errorf("invalid point: expected at least 2 values, got %d", len(point))
		}
		minLon = math.Min(minLon, point[0])
		maxLon = math.Max(maxLon, point[0])
		minLat = math.Min(minLat, point[1])
		maxLat = math.Max(maxLat, point[1])
	}
	return NewPolygonFromBBox([]float64{minLon, minLat, maxLon, maxLat})
}

// Union returns the polygon covering the combined extent of the given
// geometries (the bounding rectangle of their union).
func Union(geoms ...*Geometry) (*Geometry, error) {
	if len(geoms) == 0 {
		return nil, fmt.Errorf("no geometries provided")
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, g := range geoms {
		bbox, err := g.BBox()
		if err != nil {
			return nil, err
		}
		minLon = math.Min(minLon, bbox[0])
		minLat = math.Min(minLat, bbox[1])
		maxLon = math.Max(maxLon, bbox[2])
		maxLat = math.Max(maxLat, bbox[3])
	}
	return NewPolygonFromBBox([]float64{minLon, minLat, maxLon, maxLat})
}

// EqualWithin reports whether two geometries cover the same extent, with
// every bounding box coordinate within tolerance degrees.
func EqualWithin(a, b *Geometry, tolerance float64) (bool, error) {
	boxA, err := a.BBox()
	if err != nil {
		return false, err
	}
	boxB, err := b.BBox()
	if err != nil {
		return false, err
	}
	for i := range boxA {
		if math.Abs(boxA[i]-boxB[i]) > tolerance {
			return false, nil
		}
	}
	return true, nil
}

func newPolygon(coords [][][]float64) (*Geometry, error) {
	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}
	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

// ToWKT converts a GeoJSON geometry to WKT format.
// Supports Point and Polygon.
func ToWKT(g *Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("geometry is nil")
	}

	switch g.Type {
	case "Point":
		coords, err := g.Point()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("POINT(%s %s)", formatFloat(coords[0]), formatFloat(coords[1])), nil
	case "Polygon":
		return polygonToWKT(g)
	default:
		return "", fmt.Errorf("unsupported geometry type for WKT conversion: %s", g.Type)
	}
}

func polygonToWKT(g *Geometry) (string, error) {
	coords, err := g.Polygon()
	if err != nil {
		return "", err
	}

	var rings []string
	for _, ring := range coords {
		points := make([]string, len(ring))
		for i, point := range ring {
			if len(point) < 2 {
				return "", fmt.Errorf("invalid point in polygon ring: expected at least 2 coordinates")
			}
			points[i] = fmt.Sprintf("%s %s", formatFloat(point[0]), formatFloat(point[1]))
		}
		rings = append(rings, "("+strings.Join(points, ",")+")")
	}

	return "POLYGON(" + strings.Join(rings, ",") + ")", nil
}

// formatFloat formats a float64 for WKT output
func formatFloat(f float64) string {
	// Use strconv for clean formatting without unnecessary decimals
	return strconv.FormatFloat(f, 'f', -1, 64)
}
