package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-compare/internal/geo"
	"imagery-compare/internal/viewport"
)

// Events exchanged with the Leaflet map in the frontend
const (
	EventSessionUpdate   = "session-update"
	EventMapClick        = "map-click"
	EventMapCenter       = "map:center"
	EventMapFitBounds    = "map:fit-bounds"
	EventMapInvalidate   = "map:invalidate-size"
	EventMapOverlay      = "map:overlay"
	EventMapClearOverlay = "map:clear-overlays"
	EventMapMarker       = "map:marker"
	EventMapClearMarker  = "map:clear-marker"
)

type (
	emitFunc func(ctx context.Context, eventName string, optionalData ...interface{})
	onFunc   func(ctx context.Context, eventName string, callback func(optionalData ...interface{})) func()
)

// wailsMapSurface drives the frontend map through Wails events. Calls made before
// the Wails context is attached are dropped; the frontend asks for the current
// session on load.
type wailsMapSurface struct {
	mu      sync.RWMutex
	ctx     context.Context
	emit    emitFunc
	on      onFunc
	onClick func(coord geo.Coordinate)
	cancel  func()
	log     zerolog.Logger
}

var _ viewport.MapSurface = (*wailsMapSurface)(nil)

func newWailsMapSurface(log zerolog.Logger) *wailsMapSurface {
	return &wailsMapSurface{
		emit: wailsRuntime.EventsEmit,
		on:   wailsRuntime.EventsOn,
		log:  log.With().Str("component", "map").Logger(),
	}
}

// attach binds the surface to the Wails runtime and starts listening for clicks
func (s *wailsMapSurface) attach(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	cancel := s.on(ctx, EventMapClick, s.handleClick)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

func (s *wailsMapSurface) detach() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.ctx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *wailsMapSurface) send(event string, data ...interface{}) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	if ctx == nil {
		return
	}
	s.emit(ctx, event, data...)
}

func (s *wailsMapSurface) handleClick(data ...interface{}) {
	coord, err := parseClickPayload(data...)
	if err != nil {
		s.log.Warn().Err(err).Msg("ignoring map click")
		return
	}

	s.mu.RLock()
	callback := s.onClick
	s.mu.RUnlock()

	if callback != nil {
		callback(coord)
	}
}

// parseClickPayload reads {lat, lng} (Leaflet LatLng) or {lat, lon} from the event data
func parseClickPayload(data ...interface{}) (geo.Coordinate, error) {
	if len(data) == 0 {
		return geo.Coordinate{}, fmt.Errorf("empty click payload")
	}
	m, ok := data[0].(map[string]interface{})
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("unexpected click payload type %T", data[0])
	}

	lat, ok := m["lat"].(float64)
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("click payload has no numeric lat")
	}
	lon, ok := m["lng"].(float64)
	if !ok {
		if lon, ok = m["lon"].(float64); !ok {
			return geo.Coordinate{}, fmt.Errorf("click payload has no numeric lng")
		}
	}
	return geo.Coordinate{Latitude: lat, Longitude: lon}, nil
}

func (s *wailsMapSurface) SetViewportCenter(coord geo.Coordinate, zoom int) {
	s.send(EventMapCenter, map[string]interface{}{
		"lat":  coord.Latitude,
		"lng":  coord.Longitude,
		"zoom": zoom,
	})
}

func (s *wailsMapSurface) FitViewportToBounds(bounds geo.Bounds) {
	s.send(EventMapFitBounds, map[string]interface{}{"bounds": bounds})
}

func (s *wailsMapSurface) InvalidateLayoutSize() {
	s.send(EventMapInvalidate)
}

func (s *wailsMapSurface) OnUserClick(callback func(coord geo.Coordinate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick = callback
}

func (s *wailsMapSurface) RenderOverlayLayer(urlTemplate string, bounds geo.Bounds, opacity float64, zIndex int) {
	s.send(EventMapOverlay, map[string]interface{}{
		"url":     urlTemplate,
		"bounds":  bounds,
		"opacity": opacity,
		"zIndex":  zIndex,
	})
}

func (s *wailsMapSurface) ClearOverlays() {
	s.send(EventMapClearOverlay)
}

func (s *wailsMapSurface) RenderMarker(coord geo.Coordinate, popupText string) {
	s.send(EventMapMarker, map[string]interface{}{
		"lat":   coord.Latitude,
		"lng":   coord.Longitude,
		"popup": popupText,
	})
}

func (s *wailsMapSurface) ClearMarker() {
	s.send(EventMapClearMarker)
}
