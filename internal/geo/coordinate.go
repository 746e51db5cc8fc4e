package geo

import (
	"fmt"
	"math"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	// DisplayPrecision is the number of decimal digits kept for clicked coordinates
	DisplayPrecision = 6
)

// Coordinate represents a WGS84 point
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both axes are finite and inside their ranges
func (c Coordinate) Valid() bool {
	return LatitudeInRange(c.Latitude) && LongitudeInRange(c.Longitude)
}

// Equal compares both components exactly
func (c Coordinate) Equal(other Coordinate) bool {
	return c.Latitude == other.Latitude && c.Longitude == other.Longitude
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}

// LatitudeInRange reports whether lat is a finite value in [-90, 90]
func LatitudeInRange(lat float64) bool {
	return !math.IsNaN(lat) && lat >= MinLatitude && lat <= MaxLatitude
}

// LongitudeInRange reports whether lon is a finite value in [-180, 180]
func LongitudeInRange(lon float64) bool {
	return !math.IsNaN(lon) && lon >= MinLongitude && lon <= MaxLongitude
}

// NormalizeLongitude folds a longitude from a wrapped world copy back into [-180, 180].
// Values already in range are returned unchanged, so 180 and -180 are both kept.
func NormalizeLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	if lon > MaxLongitude || lon < MinLongitude {
		lon = math.Mod(lon, 360)
	}
	for lon > MaxLongitude {
		lon -= 360
	}
	for lon < MinLongitude {
		lon += 360
	}
	return lon
}

// ClampLatitude pins lat into [-90, 90]
func ClampLatitude(lat float64) float64 {
	return math.Max(MinLatitude, math.Min(MaxLatitude, lat))
}

// Round rounds v to the given number of decimal digits
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// NormalizeClick turns a raw map click into a storable coordinate: longitude folded,
// latitude clamped and both axes rounded to DisplayPrecision digits.
func NormalizeClick(raw Coordinate) Coordinate {
	return Coordinate{
		Latitude:  Round(ClampLatitude(raw.Latitude), DisplayPrecision),
		Longitude: Round(NormalizeLongitude(raw.Longitude), DisplayPrecision),
	}
}
