package geometry

// Payload limits for the map transport, in megabytes.
const (
	PayloadCeilingMB = 32
	PayloadErrorMB   = 25
	PayloadWarningMB = 15
)

// bytesPerPoint approximates two float64 ordinates plus encoding overhead.
const bytesPerPoint = 16 * 2

// PayloadLevel classifies an estimated payload size.
type PayloadLevel string

const (
	PayloadOK     PayloadLevel = "OK"
	PayloadLarge  PayloadLevel = "LARGE"
	PayloadTooBig PayloadLevel = "TOO_BIG"
)

// CountPoints sums the lengths of paths.
func CountPoints(paths []Path) int {
	total := 0
	for _, p := range paths {
		total += len(p)
	}
	return total
}

// EstimateBytes returns the rough transmitted size of points coordinates.
func EstimateBytes(points int) int64 {
	return int64(points) * bytesPerPoint
}

// EstimateMegabytes returns EstimateBytes in MiB.
func EstimateMegabytes(points int) float64 {
	return float64(EstimateBytes(points)) / (1024 * 1024)
}

// ClassifyPayload maps an estimate in MB to an advisory level. It never
// blocks rendering.
func ClassifyPayload(mb float64) PayloadLevel {
	switch {
	case mb > PayloadErrorMB:
		return PayloadTooBig
	case mb > PayloadWarningMB:
		return PayloadLarge
	default:
		return PayloadOK
	}
}
