// Package geometry turns GeoJSON line geometries into short coordinate paths
// for the map renderer.
//
// Decimation is a fixed-stride point-count bound, not a shape-preserving
// simplification: it keeps the rendered payload under the map transport
// ceiling regardless of source fidelity.
package geometry

import (
	"encoding/json"
	"errors"
)

// Geometry types understood by Decimate.
const (
	TypeLineString      = "LineString"
	TypeMultiLineString = "MultiLineString"
)

const (
	// DecimationThreshold is the largest point count returned unchanged.
	DecimationThreshold = 20

	// TargetPoints is the approximate point count kept for longer lines.
	TargetPoints = 10
)

var (
	errShortPosition = errors.New("position needs longitude and latitude")
	errNullOrdinate  = errors.New("position has a null ordinate")
)

// Coordinate is a [longitude, latitude] pair.
type Coordinate [2]float64

// Lon returns the longitude.
func (c Coordinate) Lon() float64 { return c[0] }

// Lat returns the latitude.
func (c Coordinate) Lat() float64 { return c[1] }

// Path is an ordered coordinate sequence ready for rendering.
type Path []Coordinate

// rawGeometry defers coordinate decoding until the type is known.
type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Decimate parses a GeoJSON geometry and returns its bounded render path.
//
// raw may be a JSON string, a byte slice, json.RawMessage, or an already
// decoded JSON object. LineStrings use all of their points; MultiLineStrings
// use only their first part. Anything else, including malformed input,
// yields an empty path.
func Decimate(raw any) Path {
	data, ok := toJSON(raw)
	if !ok {
		return Path{}
	}

	var g rawGeometry
	if err := json.Unmarshal(data, &g); err != nil {
		return Path{}
	}

	var coords Path
	switch g.Type {
	case TypeLineString:
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return Path{}
		}
	case TypeMultiLineString:
		var parts []json.RawMessage
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return Path{}
		}
		if len(parts) > 0 {
			if err := json.Unmarshal(parts[0], &coords); err != nil {
				return Path{}
			}
		}
	default:
		return Path{}
	}

	return Sample(coords)
}

// Sample applies the stride policy: paths longer than DecimationThreshold keep
// every len/TargetPoints-th point starting at index 0.
func Sample(coords Path) Path {
	if len(coords) <= DecimationThreshold {
		if coords == nil {
			return Path{}
		}
		return coords
	}

	stride := max(1, len(coords)/TargetPoints)
	out := make(Path, 0, len(coords)/stride+1)
	for i := 0; i < len(coords); i += stride {
		out = append(out, coords[i])
	}
	return out
}

// UnmarshalJSON rejects positions with fewer than two numbers or a null
// longitude or latitude. Extra ordinates such as altitude are ignored.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var values []*float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) < 2 {
		return errShortPosition
	}
	if values[0] == nil || values[1] == nil {
		return errNullOrdinate
	}
	c[0], c[1] = *values[0], *values[1]
	return nil
}

func toJSON(raw any) ([]byte, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case string:
		return []byte(v), v != ""
	case []byte:
		return v, len(v) > 0
	case json.RawMessage:
		return v, len(v) > 0
	case map[string]any:
		data, err := json.Marshal(v)
		return data, err == nil
	default:
		return nil, false
	}
}
