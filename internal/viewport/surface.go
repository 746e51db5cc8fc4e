// Package viewport decides what the map shows next and coalesces viewport commands
// so that only the latest one reaches the map surface.
package viewport

import "imagery-compare/internal/geo"

// MapSurface is the map rendering capability consumed by the session.
// Implementations must not call back into the caller synchronously.
type MapSurface interface {
	SetViewportCenter(coord geo.Coordinate, zoom int)
	FitViewportToBounds(bounds geo.Bounds)
	// InvalidateLayoutSize asks the map to recompute its own size before a move
	InvalidateLayoutSize()
	OnUserClick(callback func(coord geo.Coordinate))
	RenderOverlayLayer(urlTemplate string, bounds geo.Bounds, opacity float64, zIndex int)
	RenderMarker(coord geo.Coordinate, popupText string)
	ClearOverlays()
	ClearMarker()
}
