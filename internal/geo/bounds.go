package geo

// Bounds is a geographic rectangle in map-library order: [[south, west], [north, east]]
type Bounds [2][2]float64

// NewBounds builds Bounds from its four edges
func NewBounds(south, west, north, east float64) Bounds {
	return Bounds{{south, west}, {north, east}}
}

// BoundsFromBBox converts a GeoJSON/STAC bbox [west, south, east, north] into Bounds.
// ok is false when bbox has fewer than four values.
func BoundsFromBBox(bbox []float64) (Bounds, bool) {
	if len(bbox) < 4 {
		return Bounds{}, false
	}
	return NewBounds(bbox[1], bbox[0], bbox[3], bbox[2]), true
}

func (b Bounds) South() float64 { return b[0][0] }
func (b Bounds) West() float64  { return b[0][1] }
func (b Bounds) North() float64 { return b[1][0] }
func (b Bounds) East() float64  { return b[1][1] }

// IsZero reports whether b is the zero value
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}
