package changedetect

import (
	"imagery-compare/internal/common"
	"imagery-compare/internal/geo"
)

// ImageDescriptor references one renderable satellite image
type ImageDescriptor struct {
	ImageURL        string     `json:"imageUrl,omitempty"`
	TileURLTemplate string     `json:"tileUrlTemplate"`
	Bounds          geo.Bounds `json:"bounds"`
	DateAcquired    string     `json:"dateAcquired"`
}

// AcquiredLabel formats DateAcquired for display, e.g. "Sep 14, 2024". Values that
// do not start with a YYYY-MM-DD date are returned unchanged.
func (d *ImageDescriptor) AcquiredLabel() string {
	if len(d.DateAcquired) >= len(common.ISO8601Date) {
		if t, err := common.ParseISO8601(d.DateAcquired[:len(common.ISO8601Date)]); err == nil {
			return common.FormatDisplay(t)
		}
	}
	return d.DateAcquired
}

// SameImage reports whether d and other point at the same image: same URLs and same bounds.
// A nil descriptor only matches nil.
func (d *ImageDescriptor) SameImage(other *ImageDescriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.ImageURL == other.ImageURL &&
		d.TileURLTemplate == other.TileURLTemplate &&
		d.Bounds == other.Bounds
}

// Reconcile returns held when incoming describes the same image, otherwise incoming.
// Consumers that key on the pointer therefore see no change for an equal result.
func Reconcile(held, incoming *ImageDescriptor) *ImageDescriptor {
	if held != nil && held.SameImage(incoming) {
		return held
	}
	return incoming
}

// Comparison is the "before" and "after" image pair returned by the service
type Comparison struct {
	Before *ImageDescriptor `json:"image1"`
	After  *ImageDescriptor `json:"image2"`
}

// PrimaryBounds returns the bounds to fit the map to: the before image wins over the after image
func (c *Comparison) PrimaryBounds() (geo.Bounds, bool) {
	for _, d := range []*ImageDescriptor{c.Before, c.After} {
		if d != nil && !d.Bounds.IsZero() {
			return d.Bounds, true
		}
	}
	return geo.Bounds{}, false
}
