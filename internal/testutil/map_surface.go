// Package testutil holds fakes shared by package tests.
package testutil

import (
	"sync"

	"imagery-compare/internal/geo"
)

// SurfaceCall is one recorded call on a RecordingSurface
type SurfaceCall struct {
	Method  string
	Coord   geo.Coordinate
	Zoom    int
	Bounds  geo.Bounds
	URL     string
	Opacity float64
	ZIndex  int
	Popup   string
}

// RecordingSurface is an in-memory map surface that records every call
type RecordingSurface struct {
	mu      sync.Mutex
	calls   []SurfaceCall
	onClick func(geo.Coordinate)
}

// NewRecordingSurface returns an empty recorder
func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{}
}

func (r *RecordingSurface) record(c SurfaceCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *RecordingSurface) SetViewportCenter(coord geo.Coordinate, zoom int) {
	r.record(SurfaceCall{Method: "SetViewportCenter", Coord: coord, Zoom: zoom})
}

func (r *RecordingSurface) FitViewportToBounds(bounds geo.Bounds) {
	r.record(SurfaceCall{Method: "FitViewportToBounds", Bounds: bounds})
}

func (r *RecordingSurface) InvalidateLayoutSize() {
	r.record(SurfaceCall{Method: "InvalidateLayoutSize"})
}

func (r *RecordingSurface) OnUserClick(callback func(coord geo.Coordinate)) {
	r.mu.Lock()
	r.onClick = callback
	r.mu.Unlock()
}

func (r *RecordingSurface) RenderOverlayLayer(urlTemplate string, bounds geo.Bounds, opacity float64, zIndex int) {
	r.record(SurfaceCall{Method: "RenderOverlayLayer", URL: urlTemplate, Bounds: bounds, Opacity: opacity, ZIndex: zIndex})
}

func (r *RecordingSurface) RenderMarker(coord geo.Coordinate, popupText string) {
	r.record(SurfaceCall{Method: "RenderMarker", Coord: coord, Popup: popupText})
}

func (r *RecordingSurface) ClearOverlays() {
	r.record(SurfaceCall{Method: "ClearOverlays"})
}

func (r *RecordingSurface) ClearMarker() {
	r.record(SurfaceCall{Method: "ClearMarker"})
}

// Click simulates a user click, as the map would report it
func (r *RecordingSurface) Click(coord geo.Coordinate) {
	r.mu.Lock()
	cb := r.onClick
	r.mu.Unlock()
	if cb != nil {
		cb(coord)
	}
}

// Calls returns a copy of the recorded calls, optionally filtered by method name
func (r *RecordingSurface) Calls(methods ...string) []SurfaceCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SurfaceCall, 0, len(r.calls))
	for _, c := range r.calls {
		if len(methods) == 0 {
			out = append(out, c)
			continue
		}
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Reset forgets recorded calls
func (r *RecordingSurface) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
