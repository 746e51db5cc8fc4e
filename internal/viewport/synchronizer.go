package viewport

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"imagery-compare/internal/geo"
)

// DefaultSettleDelay gives the map surface time to recompute its layout before a move
const DefaultSettleDelay = 100 * time.Millisecond

// Synchronizer holds at most one pending viewport intent and applies it to the map
// surface after a settle delay. Issuing a new intent before the previous one was
// applied replaces it. Applying never issues new intents.
type Synchronizer struct {
	surface   MapSurface
	zoom      int
	debounced func(f func())
	log       zerolog.Logger

	mu         sync.Mutex
	pending    *Intent
	lastCenter *geo.Coordinate // last coordinate a Center intent was issued for
	seq        uint64

	applyMu sync.Mutex
	applied uint64
}

// NewSynchronizer creates a synchronizer bound to surface. zoom is used for Center intents.
func NewSynchronizer(surface MapSurface, settle time.Duration, zoom int, log zerolog.Logger) *Synchronizer {
	if settle < 0 {
		settle = 0
	}
	return &Synchronizer{
		surface:   surface,
		zoom:      zoom,
		debounced: debounce.New(settle),
		log:       log.With().Str("component", "viewport").Logger(),
	}
}

// Center issues a Center intent for c unless c equals the coordinate of the previous
// Center intent. It reports whether an intent was issued.
func (s *Synchronizer) Center(c geo.Coordinate) bool {
	s.mu.Lock()
	if s.lastCenter != nil && s.lastCenter.Equal(c) {
		s.mu.Unlock()
		return false
	}
	last := c
	s.lastCenter = &last
	s.seq++
	s.pending = &Intent{Kind: KindCenter, Center: c, Zoom: s.zoom, Seq: s.seq}
	s.mu.Unlock()

	s.schedule()
	return true
}

// FitBounds issues a FitBounds intent, replacing any pending Center intent
func (s *Synchronizer) FitBounds(b geo.Bounds) {
	s.mu.Lock()
	s.seq++
	s.pending = &Intent{Kind: KindFitBounds, Bounds: b, Seq: s.seq}
	s.mu.Unlock()

	s.schedule()
}

// Clear drops the pending intent and forgets the last center, so the next Center
// call always issues.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.pending = nil
	s.lastCenter = nil
	s.mu.Unlock()
}

// Pending returns the intent waiting to be applied, if any
func (s *Synchronizer) Pending() (Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Intent{}, false
	}
	return *s.pending, true
}

// Applied returns how many intents reached the surface
func (s *Synchronizer) Applied() uint64 {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.applied
}

// Flush applies the pending intent immediately instead of waiting for the settle delay
func (s *Synchronizer) Flush() {
	s.apply()
}

func (s *Synchronizer) schedule() {
	s.debounced(s.apply)
}

// apply takes the pending intent, if any, and hands it to the surface. A timer that
// fires after Flush or Clear finds nothing to do.
func (s *Synchronizer) apply() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	intent := s.pending
	s.pending = nil
	s.mu.Unlock()

	if intent == nil {
		return
	}

	s.surface.InvalidateLayoutSize()
	switch intent.Kind {
	case KindCenter:
		s.surface.SetViewportCenter(intent.Center, intent.Zoom)
	case KindFitBounds:
		s.surface.FitViewportToBounds(intent.Bounds)
	}
	s.applied++
	s.log.Debug().Stringer("intent", intent).Msg("viewport intent applied")
}
