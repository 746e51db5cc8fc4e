package session

import (
	"imagery-compare/internal/changedetect"
	"imagery-compare/internal/geo"
	"imagery-compare/internal/utils/naming"
	"imagery-compare/internal/viewport"
)

// Overlay styling for the two images; the after image is drawn on top
const (
	BeforeOpacity = 1.0
	BeforeZIndex  = 10
	AfterOpacity  = 0.6
	AfterZIndex   = 20
)

// layerRenderer mirrors the session's images and marker onto the map surface.
// Overlays are redrawn only when a descriptor pointer changes.
type layerRenderer struct {
	surface viewport.MapSurface
	before  *changedetect.ImageDescriptor
	after   *changedetect.ImageDescriptor
	marker  *geo.Coordinate
}

// forget drops what the renderer believes is drawn, so the next sync draws everything
func (r *layerRenderer) forget() {
	r.before, r.after, r.marker = nil, nil, nil
}

func (r *layerRenderer) sync(before, after *changedetect.ImageDescriptor, marker *geo.Coordinate) {
	if before != r.before || after != r.after {
		r.surface.ClearOverlays()
		if before != nil {
			r.surface.RenderOverlayLayer(before.TileURLTemplate, before.Bounds, BeforeOpacity, BeforeZIndex)
		}
		if after != nil {
			r.surface.RenderOverlayLayer(after.TileURLTemplate, after.Bounds, AfterOpacity, AfterZIndex)
		}
		r.before, r.after = before, after
	}

	switch {
	case marker == nil && r.marker != nil:
		r.surface.ClearMarker()
		r.marker = nil
	case marker != nil && (r.marker == nil || !r.marker.Equal(*marker)):
		m := *marker
		r.surface.RenderMarker(m, naming.CoordinateLabel(m.Latitude, m.Longitude))
		r.marker = &m
	}
}
