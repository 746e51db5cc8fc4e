package naming

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Hemisphere returns N/S for latitudes and E/W for longitudes. Zero is N or E.
func Hemisphere(coord float64, isLat bool) string {
	if isLat {
		if coord < 0 {
			return "S"
		}
		return "N"
	}
	if coord < 0 {
		return "W"
	}
	return "E"
}

// FormatCoordinate formats one axis for display, e.g. "35.4393° N".
// Trailing zeros of the 6-digit representation are dropped.
func FormatCoordinate(coord float64, isLat bool) string {
	coordStr := strconv.FormatFloat(math.Abs(coord), 'f', 6, 64)
	coordStr = strings.TrimRight(coordStr, "0")
	coordStr = strings.TrimSuffix(coordStr, ".")
	return fmt.Sprintf("%s° %s", coordStr, Hemisphere(coord, isLat))
}

// CoordinateLabel is the marker popup text for a point, e.g. "35.4393° N, 82.2465° W"
func CoordinateLabel(lat, lon float64) string {
	return FormatCoordinate(lat, true) + ", " + FormatCoordinate(lon, false)
}
