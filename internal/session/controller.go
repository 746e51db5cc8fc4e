// Package session is the comparison session controller: it owns the form input, the
// in-flight comparison request, the map marker and overlays, and the computation
// selection, and exposes one method per user action.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"imagery-compare/internal/changedetect"
	"imagery-compare/internal/computation"
	"imagery-compare/internal/geo"
	"imagery-compare/internal/validation"
	"imagery-compare/internal/viewport"
)

// ErrNotLoaded is returned when computations are requested before a comparison loaded
var ErrNotLoaded = errors.New("load a comparison before running computations")

// Comparer fetches the before/after image pair for a validated request
type Comparer interface {
	Compare(ctx context.Context, req validation.ComparisonRequest) (*changedetect.Comparison, error)
}

// Options configures a Controller
type Options struct {
	SeedInput          validation.RawInput
	SettleDelay        time.Duration
	Zoom               int
	ComputationLatency time.Duration
	Catalog            *computation.Catalog
	Strategy           computation.Strategy
	Logger             zerolog.Logger
	// OnChange receives every new snapshot, outside the controller lock
	OnChange func(Snapshot)
}

// DefaultOptions returns options with the stock catalog and delays
func DefaultOptions() Options {
	return Options{
		SeedInput: validation.RawInput{
			CloudCover: validation.DefaultCloudCover,
		},
		SettleDelay:        viewport.DefaultSettleDelay,
		Zoom:               13,
		ComputationLatency: computation.DefaultLatency,
		Catalog:            computation.DefaultCatalog,
		Logger:             zerolog.Nop(),
	}
}

type state struct {
	status      Status
	input       validation.RawInput
	fieldErrors validation.FieldErrors
	errText     string
	before      *changedetect.ImageDescriptor
	after       *changedetect.ImageDescriptor
	marker      *geo.Coordinate
	selection   *computation.Selection
	results     computation.ResultSet
}

// Controller is the single session state plus the transitions between its values.
// All methods are safe for concurrent use.
type Controller struct {
	comparer Comparer
	viewport *viewport.Synchronizer
	runner   *computation.Runner
	catalog  *computation.Catalog
	seed     validation.RawInput
	onChange func(Snapshot)
	log      zerolog.Logger

	mu      sync.Mutex
	st      state
	layers  layerRenderer
	version uint64

	// requestSeq identifies the latest submit; responses carrying an older token are dropped
	requestSeq uint64
	// heldBefore/heldAfter survive the Loading phase so equal results keep their identity
	heldBefore *changedetect.ImageDescriptor
	heldAfter  *changedetect.ImageDescriptor
	// epoch advances whenever visible computation results become invalid
	epoch uint64
}

// New creates a controller driving surface and registers for its click events
func New(comparer Comparer, surface viewport.MapSurface, opts Options) *Controller {
	if opts.Catalog == nil {
		opts.Catalog = computation.DefaultCatalog
	}
	if opts.SeedInput.CloudCover == 0 {
		opts.SeedInput.CloudCover = validation.DefaultCloudCover
	}

	log := opts.Logger.With().Str("component", "session").Logger()
	c := &Controller{
		comparer: comparer,
		viewport: viewport.NewSynchronizer(surface, opts.SettleDelay, opts.Zoom, opts.Logger),
		runner:   computation.NewRunner(opts.Catalog, opts.Strategy, opts.ComputationLatency),
		catalog:  opts.Catalog,
		seed:     opts.SeedInput,
		onChange: opts.OnChange,
		log:      log,
		layers:   layerRenderer{surface: surface},
	}
	c.st = c.initialState()

	surface.OnUserClick(func(coord geo.Coordinate) {
		c.MapClick(coord)
	})
	return c
}

func (c *Controller) initialState() state {
	return state{
		status:    StatusIdle,
		input:     c.seed,
		selection: computation.NewSelection(c.catalog),
	}
}

// Viewport exposes the synchronizer, mainly so callers can flush pending intents
func (c *Controller) Viewport() *viewport.Synchronizer {
	return c.viewport
}

// Catalog returns the computation catalog
func (c *Controller) Catalog() *computation.Catalog {
	return c.catalog
}

// Snapshot returns the current session state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// UpdateInput stores the form fields as typed. When both coordinate fields hold an
// in-range number the marker follows and the map is centered on it, unless it was
// already centered there.
func (c *Controller) UpdateInput(raw validation.RawInput) Snapshot {
	c.mu.Lock()
	c.st.input = raw
	if coord, ok := validation.ParseCoordinate(raw.Latitude, raw.Longitude); ok {
		c.st.marker = &coord
		c.viewport.Center(coord)
	}
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap
}

// MapClick handles a click reported by the map: the coordinate is folded into range,
// rounded to 6 digits, written into the form and centered on.
func (c *Controller) MapClick(raw geo.Coordinate) Snapshot {
	coord := geo.NormalizeClick(raw)

	c.mu.Lock()
	c.st.input.Latitude = validation.FormatAxis(coord.Latitude)
	c.st.input.Longitude = validation.FormatAxis(coord.Longitude)
	c.st.marker = &coord
	c.viewport.Center(coord)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.log.Debug().Stringer("raw", raw).Stringer("coord", coord).Msg("map click")
	c.notify(snap)
	return snap
}

// Submit validates raw and, when valid, runs one comparison request. Invalid input
// resets images, marker and viewport. Request errors end up in Snapshot.Error and
// are never returned. A response that arrives after a newer Submit or Reset is
// discarded.
func (c *Controller) Submit(ctx context.Context, raw validation.RawInput) Snapshot {
	c.mu.Lock()
	c.st.input = raw
	c.requestSeq++
	token := c.requestSeq

	req, fieldErrs := validation.Validate(raw)
	if fieldErrs != nil {
		c.st.status = StatusValidationFailed
		c.st.fieldErrors = fieldErrs
		c.st.errText = ""
		c.dropImagesLocked()
		c.st.marker = nil
		c.viewport.Clear()
		c.hideResultsLocked()
		snap := c.commitLocked()
		c.mu.Unlock()

		c.log.Debug().Interface("fields", fieldErrs).Msg("submit rejected by validation")
		c.notify(snap)
		return snap
	}

	c.st.status = StatusLoading
	c.st.fieldErrors = nil
	c.st.errText = ""
	c.st.before, c.st.after = nil, nil
	c.hideResultsLocked()
	marker := req.Coordinate
	c.st.marker = &marker
	c.viewport.Center(req.Coordinate)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.log.Debug().Uint64("token", token).Stringer("coord", req.Coordinate).
		Str("date1", req.Date1).Str("date2", req.Date2).Int("cloudCover", req.CloudCover).
		Msg("comparison requested")
	c.notify(snap)

	result, err := c.comparer.Compare(ctx, req)

	c.mu.Lock()
	if token != c.requestSeq {
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.log.Debug().Uint64("token", token).Msg("discarding stale comparison response")
		return snap
	}

	if err != nil {
		c.st.status = StatusRequestFailed
		c.st.errText = err.Error()
		c.st.marker = nil
		c.viewport.Clear()
		c.dropImagesLocked()
		c.log.Warn().Err(err).Msg("comparison request failed")
	} else {
		c.heldBefore = changedetect.Reconcile(c.heldBefore, result.Before)
		c.heldAfter = changedetect.Reconcile(c.heldAfter, result.After)
		c.st.before, c.st.after = c.heldBefore, c.heldAfter
		c.st.status = StatusLoaded
		if bounds, ok := result.PrimaryBounds(); ok {
			c.viewport.FitBounds(bounds)
		}
	}
	snap = c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap
}

// Reset returns the session to the state of a fresh controller. Any in-flight
// response is discarded when it arrives.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	c.requestSeq++
	c.epoch++
	c.heldBefore, c.heldAfter = nil, nil
	c.st = c.initialState()
	c.viewport.Clear()
	c.runner.Reset()
	snap := c.commitLocked()
	c.mu.Unlock()

	c.log.Debug().Msg("session reset")
	c.notify(snap)
	return snap
}

// Redraw sends the marker and overlays to a map surface that lost them, for example
// after the page hosting it loaded or reloaded, and moves the map back to them.
// Session state is unchanged.
func (c *Controller) Redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.layers.forget()
	c.layers.sync(c.st.before, c.st.after, c.st.marker)

	current := changedetect.Comparison{Before: c.st.before, After: c.st.after}
	if bounds, ok := current.PrimaryBounds(); ok {
		c.viewport.FitBounds(bounds)
	} else if c.st.marker != nil {
		c.viewport.Clear()
		c.viewport.Center(*c.st.marker)
	}
}

// ToggleItem selects or deselects one computation item
func (c *Controller) ToggleItem(name string) (Snapshot, error) {
	return c.changeSelection(func(s *computation.Selection) error {
		return s.Toggle(name)
	})
}

// SetCategory selects or deselects every item of a category
func (c *Controller) SetCategory(category string, checked bool) (Snapshot, error) {
	return c.changeSelection(func(s *computation.Selection) error {
		return s.SetCategory(category, checked)
	})
}

// ToggleCategory flips a category checkbox: fully selected categories are cleared,
// anything else becomes fully selected.
func (c *Controller) ToggleCategory(category string) (Snapshot, error) {
	return c.changeSelection(func(s *computation.Selection) error {
		return s.ToggleCategory(category)
	})
}

func (c *Controller) changeSelection(apply func(s *computation.Selection) error) (Snapshot, error) {
	c.mu.Lock()
	if err := apply(c.st.selection); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	c.hideResultsLocked()
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap, nil
}

// RunComputation runs the selected computations and publishes a new result set.
// It requires a loaded comparison, a non-empty selection and no run in progress.
// Results are dropped if the selection or the comparison changed while running.
func (c *Controller) RunComputation(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.st.status != StatusLoaded {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrNotLoaded
	}
	items := c.st.selection.Items()
	if err := c.runner.Start(items); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	epoch := c.epoch
	snap := c.commitLocked()
	c.mu.Unlock()

	c.log.Debug().Int("items", len(items)).Msg("computation started")
	c.notify(snap)

	results, err := c.runner.Finish(ctx, items)

	c.mu.Lock()
	switch {
	case err != nil:
	case epoch != c.epoch:
		c.runner.Reset()
		c.log.Debug().Msg("discarding computation results for a stale selection")
	default:
		c.st.results = results
	}
	snap = c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap, err
}

func (c *Controller) dropImagesLocked() {
	c.heldBefore, c.heldAfter = nil, nil
	c.st.before, c.st.after = nil, nil
}

// hideResultsLocked invalidates visible and in-flight computation results.
// The selection itself is kept.
func (c *Controller) hideResultsLocked() {
	c.st.results = nil
	c.epoch++
	c.runner.Reset()
}

// commitLocked records a state change, mirrors it onto the map and returns the snapshot
func (c *Controller) commitLocked() Snapshot {
	c.version++
	c.layers.sync(c.st.before, c.st.after, c.st.marker)
	return c.snapshotLocked()
}

func (c *Controller) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
