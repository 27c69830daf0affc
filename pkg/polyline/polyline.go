// Package polyline implements Google's encoded polyline algorithm with a
// configurable precision.
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"
)

// DefaultPrecision is the number of decimal places of the standard format.
const DefaultPrecision = 5

// Supported precisions. Above MaxPrecision scaled coordinates outgrow the
// practical range of the format.
const (
	MinPrecision = 1
	MaxPrecision = 7
)

// ValidPrecision reports whether p is within MinPrecision..MaxPrecision.
func ValidPrecision(p int) bool {
	return p >= MinPrecision && p <= MaxPrecision
}

// Coordinate represents a geographic point with latitude and longitude.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Encode encodes coordinates at the given precision. An unsupported
// precision falls back to DefaultPrecision.
func Encode(coords []Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	factor := scale(precision)
	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLon := 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * factor))
		lon := int(math.Round(coord.Lon * factor))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

// Decode decodes a polyline encoded at the given precision.
func Decode(encoded string, precision int) []Coordinate {
	if encoded == "" {
		return nil
	}

	factor := scale(precision)
	var coords []Coordinate
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, newIndex := decodeValue(encoded, index)
		index = newIndex
		lat += latDelta

		lonDelta, newIndex := decodeValue(encoded, index)
		index = newIndex
		lon += lonDelta

		coords = append(coords, Coordinate{
			Lat: float64(lat) / factor,
			Lon: float64(lon) / factor,
		})
	}

	return coords
}

func scale(precision int) float64 {
	if !ValidPrecision(precision) {
		precision = DefaultPrecision
	}
	return math.Pow10(precision)
}

// decodeValue decodes a single value from the polyline at the given index.
// Returns the decoded delta value and the new index position.
func decodeValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Two's complement for negative values
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// encodeValue appends a single signed value in 5-bit chunks.
func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}
