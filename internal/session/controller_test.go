package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagery-compare/internal/changedetect"
	"imagery-compare/internal/computation"
	"imagery-compare/internal/geo"
	"imagery-compare/internal/testutil"
	"imagery-compare/internal/validation"
	"imagery-compare/internal/viewport"
)

const (
	ndvi       = "NDVI (Normalized Difference Vegetation Index)"
	evi        = "EVI (Enhanced Vegetation Index)"
	vegetation = "Vegetation Analysis"
)

var (
	boundsBefore = geo.NewBounds(35.1, -83.1, 36.0, -82.0)
	boundsAfter  = geo.NewBounds(35.2, -83.0, 36.1, -81.9)
)

func scenarioInput() validation.RawInput {
	return validation.RawInput{
		Latitude:   "35.4393",
		Longitude:  "-82.2465",
		Date1:      "2024-09-16",
		Date2:      "2024-10-12",
		CloudCover: 20,
	}
}

func scenarioComparison() *changedetect.Comparison {
	return &changedetect.Comparison{
		Before: &changedetect.ImageDescriptor{ImageURL: "a.tif", TileURLTemplate: "tiles/a/{z}/{x}/{y}", Bounds: boundsBefore, DateAcquired: "2024-09-14"},
		After:  &changedetect.ImageDescriptor{ImageURL: "b.tif", TileURLTemplate: "tiles/b/{z}/{x}/{y}", Bounds: boundsAfter, DateAcquired: "2024-10-11"},
	}
}

// funcComparer answers each request through fn
type funcComparer struct {
	mu    sync.Mutex
	calls []validation.ComparisonRequest
	fn    func(ctx context.Context, call int, req validation.ComparisonRequest) (*changedetect.Comparison, error)
}

func (f *funcComparer) Compare(ctx context.Context, req validation.ComparisonRequest) (*changedetect.Comparison, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	call := len(f.calls)
	f.mu.Unlock()
	return f.fn(ctx, call, req)
}

func (f *funcComparer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func staticComparer(res *changedetect.Comparison, err error) *funcComparer {
	return &funcComparer{fn: func(context.Context, int, validation.ComparisonRequest) (*changedetect.Comparison, error) {
		return res, err
	}}
}

func newTestController(t *testing.T, comparer Comparer) (*Controller, *testutil.RecordingSurface) {
	t.Helper()
	surface := testutil.NewRecordingSurface()
	opts := DefaultOptions()
	opts.SeedInput = scenarioInput()
	opts.SettleDelay = time.Hour
	opts.ComputationLatency = 5 * time.Millisecond
	opts.Strategy = computation.NewRandomStrategy(99)
	opts.Logger = zerolog.Nop()
	return New(comparer, surface, opts), surface
}

func loaded(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	snap := c.Submit(context.Background(), scenarioInput())
	require.Equal(t, StatusLoaded, snap.Status)
	return snap
}

func TestSubmit_Scenario(t *testing.T) {
	comparer := staticComparer(scenarioComparison(), nil)
	c, surface := newTestController(t, comparer)

	snap := c.Submit(context.Background(), scenarioInput())

	assert.Equal(t, StatusLoaded, snap.Status)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.FieldErrors)
	require.NotNil(t, snap.Before)
	require.NotNil(t, snap.After)
	require.NotNil(t, snap.Marker)
	assert.Equal(t, geo.Coordinate{Latitude: 35.4393, Longitude: -82.2465}, *snap.Marker)

	require.Equal(t, 1, comparer.Calls())
	assert.Equal(t, 20, comparer.calls[0].CloudCover)

	c.Viewport().Flush()
	fits := surface.Calls("FitViewportToBounds")
	require.Len(t, fits, 1)
	assert.Equal(t, boundsBefore, fits[0].Bounds)
	assert.Empty(t, surface.Calls("SetViewportCenter"))

	markers := surface.Calls("RenderMarker")
	require.Len(t, markers, 1)
	assert.Equal(t, geo.Coordinate{Latitude: 35.4393, Longitude: -82.2465}, markers[0].Coord)
	assert.Equal(t, "35.4393° N, 82.2465° W", markers[0].Popup)

	overlays := surface.Calls("RenderOverlayLayer")
	require.Len(t, overlays, 2)
	assert.Equal(t, "tiles/a/{z}/{x}/{y}", overlays[0].URL)
	assert.Equal(t, BeforeZIndex, overlays[0].ZIndex)
	assert.Equal(t, "tiles/b/{z}/{x}/{y}", overlays[1].URL)
	assert.Equal(t, AfterOpacity, overlays[1].Opacity)
}

func TestSubmit_FitsAfterBoundsWhenBeforeHasNone(t *testing.T) {
	res := scenarioComparison()
	res.Before.Bounds = geo.Bounds{}
	c, surface := newTestController(t, staticComparer(res, nil))

	loaded(t, c)
	c.Viewport().Flush()

	fits := surface.Calls("FitViewportToBounds")
	require.Len(t, fits, 1)
	assert.Equal(t, boundsAfter, fits[0].Bounds)
}

func TestSubmit_InvalidLatitudeClearsEverything(t *testing.T) {
	for _, lat := range []string{"90.5", "-91", "1000"} {
		t.Run(lat, func(t *testing.T) {
			comparer := staticComparer(scenarioComparison(), nil)
			c, surface := newTestController(t, comparer)
			loaded(t, c)
			surface.Reset()

			in := scenarioInput()
			in.Latitude = lat
			snap := c.Submit(context.Background(), in)

			assert.Equal(t, StatusValidationFailed, snap.Status)
			require.Len(t, snap.FieldErrors, 1)
			assert.Contains(t, snap.FieldErrors, validation.FieldLatitude)
			assert.Nil(t, snap.Before)
			assert.Nil(t, snap.After)
			assert.Nil(t, snap.Marker)
			assert.Empty(t, snap.Error)
			assert.Equal(t, 1, comparer.Calls())

			_, pending := c.Viewport().Pending()
			assert.False(t, pending)
			assert.Len(t, surface.Calls("ClearOverlays"), 1)
			assert.Len(t, surface.Calls("ClearMarker"), 1)
		})
	}
}

func TestSubmit_InvalidLongitudeReportsOnlyLongitude(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))
	in := scenarioInput()
	in.Longitude = "-180.5"

	snap := c.Submit(context.Background(), in)
	require.Len(t, snap.FieldErrors, 1)
	assert.Equal(t, "Longitude must be between -180 and 180.", snap.FieldErrors[validation.FieldLongitude])
}

func TestSubmit_ClearsStateWhileLoading(t *testing.T) {
	release := make(chan struct{})
	comparer := &funcComparer{fn: func(_ context.Context, call int, _ validation.ComparisonRequest) (*changedetect.Comparison, error) {
		if call == 2 {
			<-release
		}
		return scenarioComparison(), nil
	}}

	var mu sync.Mutex
	var seen []Snapshot
	c, _ := newTestController(t, comparer)
	c.onChange = func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}

	loaded(t, c)
	_, err := c.ToggleItem(ndvi)
	require.NoError(t, err)
	_, err = c.RunComputation(context.Background())
	require.NoError(t, err)

	done := make(chan Snapshot)
	go func() { done <- c.Submit(context.Background(), scenarioInput()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)
	during := c.Snapshot()
	assert.Equal(t, StatusLoading, during.Status)
	assert.Nil(t, during.Before)
	assert.Nil(t, during.After)
	assert.Nil(t, during.Results)
	assert.Equal(t, computation.StatusIdle, during.Computation)
	assert.Equal(t, []string{ndvi}, during.Selection)

	close(release)
	final := <-done
	assert.Equal(t, StatusLoaded, final.Status)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Version, seen[i-1].Version)
	}
}

func TestSubmit_IdentitySuppressionForEqualResponse(t *testing.T) {
	body := `{"image1": {"imageUrl": "a.tif", "tileUrlTemplate": "tiles/a", "bounds": [[35.1, -83.1], [36.0, -82.0]], "dateAcquired": "2024-09-14"},
	          "image2": {"imageUrl": "b.tif", "tileUrlTemplate": "tiles/b", "bounds": [[35.2, -83.0], [36.1, -81.9]], "dateAcquired": "2024-10-11"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := changedetect.NewClient(srv.URL, time.Second, zerolog.Nop())
	c, _ := newTestController(t, client)

	first := loaded(t, c)
	second := loaded(t, c)

	assert.Same(t, first.Before, second.Before)
	assert.Same(t, first.After, second.After)
}

func TestSubmit_ChangedDescriptorReplacesReference(t *testing.T) {
	comparer := &funcComparer{fn: func(_ context.Context, call int, _ validation.ComparisonRequest) (*changedetect.Comparison, error) {
		res := scenarioComparison()
		if call == 2 {
			res.After.Bounds = geo.NewBounds(0, 0, 1, 1)
		}
		return res, nil
	}}
	c, _ := newTestController(t, comparer)

	first := loaded(t, c)
	second := loaded(t, c)
	assert.Same(t, first.Before, second.Before)
	assert.NotSame(t, first.After, second.After)
}

func TestSubmit_StaleResponseDiscarded(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})
	comparer := &funcComparer{fn: func(_ context.Context, call int, req validation.ComparisonRequest) (*changedetect.Comparison, error) {
		res := scenarioComparison()
		res.Before.ImageURL = "call-" + strconv.Itoa(call)
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
		}
		return res, nil
	}}
	c, _ := newTestController(t, comparer)

	firstDone := make(chan Snapshot)
	go func() { firstDone <- c.Submit(context.Background(), scenarioInput()) }()
	<-firstStarted

	second := c.Submit(context.Background(), scenarioInput())
	require.Equal(t, StatusLoaded, second.Status)
	assert.Equal(t, "call-2", second.Before.ImageURL)

	close(releaseFirst)
	stale := <-firstDone
	assert.Equal(t, "call-2", stale.Before.ImageURL)
	assert.Equal(t, "call-2", c.Snapshot().Before.ImageURL)
	assert.Equal(t, second.Version, c.Snapshot().Version)
}

func TestSubmit_StaleFailureDoesNotOverwrite(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})
	comparer := &funcComparer{fn: func(_ context.Context, call int, _ validation.ComparisonRequest) (*changedetect.Comparison, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
			return nil, &changedetect.ServiceError{StatusCode: 500, Message: "boom"}
		}
		return scenarioComparison(), nil
	}}
	c, _ := newTestController(t, comparer)

	firstDone := make(chan struct{})
	go func() {
		c.Submit(context.Background(), scenarioInput())
		close(firstDone)
	}()
	<-firstStarted
	loaded(t, c)

	close(releaseFirst)
	<-firstDone
	snap := c.Snapshot()
	assert.Equal(t, StatusLoaded, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestSubmit_RequestFailure(t *testing.T) {
	var fail bool
	comparer := &funcComparer{fn: func(context.Context, int, validation.ComparisonRequest) (*changedetect.Comparison, error) {
		if fail {
			return nil, &changedetect.ServiceError{StatusCode: 404, Message: "No clear image found for Date 1 (2024-09-16) with cloud cover less than 20%."}
		}
		return scenarioComparison(), nil
	}}
	c, surface := newTestController(t, comparer)
	first := loaded(t, c)

	fail = true
	snap := c.Submit(context.Background(), scenarioInput())
	assert.Equal(t, StatusRequestFailed, snap.Status)
	assert.False(t, snap.Loading)
	assert.Equal(t, "No clear image found for Date 1 (2024-09-16) with cloud cover less than 20%.", snap.Error)
	assert.Nil(t, snap.Before)
	assert.Nil(t, snap.After)
	assert.Nil(t, snap.Marker)
	_, pending := c.Viewport().Pending()
	assert.False(t, pending)

	// recoverable: a later success gets fresh descriptors
	fail = false
	again := loaded(t, c)
	assert.Empty(t, again.Error)
	assert.NotSame(t, first.Before, again.Before)
	assert.NotEmpty(t, surface.Calls("RenderOverlayLayer"))
}

func TestSubmit_NetworkErrorSurfacedAsText(t *testing.T) {
	c, _ := newTestController(t, staticComparer(nil, &changedetect.NetworkError{Err: errors.New("connection refused")}))
	snap := c.Submit(context.Background(), scenarioInput())
	assert.Equal(t, StatusRequestFailed, snap.Status)
	assert.Equal(t, "network error: connection refused", snap.Error)
}

func TestReset_MatchesFreshSession(t *testing.T) {
	comparer := staticComparer(scenarioComparison(), nil)
	fresh, _ := newTestController(t, comparer)
	want := fresh.Snapshot()

	t.Run("from loaded with results", func(t *testing.T) {
		c, _ := newTestController(t, comparer)
		loaded(t, c)
		_, err := c.SetCategory(vegetation, true)
		require.NoError(t, err)
		snap, err := c.RunComputation(context.Background())
		require.NoError(t, err)
		require.Equal(t, computation.StatusDone, snap.Computation)

		got := c.Reset()
		got.Version, want.Version = 0, 0
		assert.Equal(t, want, got)
	})

	t.Run("from request failed", func(t *testing.T) {
		c, _ := newTestController(t, staticComparer(nil, &changedetect.ServiceError{StatusCode: 500, Message: "x"}))
		c.Submit(context.Background(), scenarioInput())

		got := c.Reset()
		got.Version, want.Version = 0, 0
		assert.Equal(t, want, got)
	})
}

func TestReset_DiscardsInFlightResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	comparer := &funcComparer{fn: func(context.Context, int, validation.ComparisonRequest) (*changedetect.Comparison, error) {
		close(started)
		<-release
		return scenarioComparison(), nil
	}}
	c, _ := newTestController(t, comparer)

	done := make(chan struct{})
	go func() {
		c.Submit(context.Background(), scenarioInput())
		close(done)
	}()
	<-started
	c.Reset()
	close(release)
	<-done

	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Before)
}

func TestRedraw_ResendsLayersAndView(t *testing.T) {
	c, surface := newTestController(t, staticComparer(scenarioComparison(), nil))

	t.Run("marker only", func(t *testing.T) {
		c.UpdateInput(scenarioInput())
		c.Viewport().Flush()
		surface.Reset()

		c.Redraw()
		markers := surface.Calls("RenderMarker")
		require.Len(t, markers, 1)
		assert.Equal(t, "35.4393° N, 82.2465° W", markers[0].Popup)
		assert.Empty(t, surface.Calls("RenderOverlayLayer"))

		intent, ok := c.Viewport().Pending()
		require.True(t, ok)
		assert.Equal(t, viewport.KindCenter, intent.Kind)
	})

	t.Run("loaded comparison", func(t *testing.T) {
		snap := loaded(t, c)
		assert.Equal(t, "Sep 14, 2024", snap.BeforeAcquired)
		assert.Equal(t, "Oct 11, 2024", snap.AfterAcquired)
		c.Viewport().Flush()
		surface.Reset()

		c.Redraw()
		overlays := surface.Calls("RenderOverlayLayer")
		require.Len(t, overlays, 2)
		assert.Equal(t, "tiles/a/{z}/{x}/{y}", overlays[0].URL)
		assert.Equal(t, AfterZIndex, overlays[1].ZIndex)
		assert.Len(t, surface.Calls("RenderMarker"), 1)

		intent, ok := c.Viewport().Pending()
		require.True(t, ok)
		assert.Equal(t, viewport.KindFitBounds, intent.Kind)
		assert.Equal(t, boundsBefore, intent.Bounds)
		assert.Equal(t, snap.Version, c.Snapshot().Version)
	})
}

func TestMapClick_NormalizesAndCenters(t *testing.T) {
	c, surface := newTestController(t, staticComparer(scenarioComparison(), nil))

	surface.Click(geo.Coordinate{Latitude: 12.3456789, Longitude: 200})
	snap := c.Snapshot()

	assert.Equal(t, "12.345679", snap.Input.Latitude)
	assert.Equal(t, "-160.000000", snap.Input.Longitude)
	require.NotNil(t, snap.Marker)
	assert.Equal(t, geo.Coordinate{Latitude: 12.345679, Longitude: -160}, *snap.Marker)

	intent, ok := c.Viewport().Pending()
	require.True(t, ok)
	assert.Equal(t, viewport.KindCenter, intent.Kind)
	assert.Equal(t, *snap.Marker, intent.Center)

	c.Viewport().Flush()
	centers := surface.Calls("SetViewportCenter")
	require.Len(t, centers, 1)
	assert.Equal(t, 13, centers[0].Zoom)
}

func TestUpdateInput_CentersOnlyOnCoordinateChange(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))

	in := scenarioInput()
	c.UpdateInput(in)
	first, ok := c.Viewport().Pending()
	require.True(t, ok)

	in.Date2 = "2024-11-01"
	c.UpdateInput(in)
	again, _ := c.Viewport().Pending()
	assert.Equal(t, first.Seq, again.Seq)

	in.Latitude = "35.5"
	snap := c.UpdateInput(in)
	moved, _ := c.Viewport().Pending()
	assert.Greater(t, moved.Seq, first.Seq)
	assert.Equal(t, 35.5, snap.Marker.Latitude)

	// half-typed input leaves the marker where it was
	in.Longitude = "-"
	snap = c.UpdateInput(in)
	assert.Equal(t, "-", snap.Input.Longitude)
	assert.Equal(t, -82.2465, snap.Marker.Longitude)
}

func TestSelection_CategoryCheckboxFollowsItems(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))
	names, err := computation.DefaultCatalog.ItemNames(vegetation)
	require.NoError(t, err)

	var snap Snapshot
	for _, n := range names {
		snap, err = c.ToggleItem(n)
		require.NoError(t, err)
	}
	assert.True(t, snap.Categories[0].Checked)
	assert.Equal(t, computation.Checked, snap.Categories[0].State)

	snap, err = c.ToggleItem(names[1])
	require.NoError(t, err)
	assert.False(t, snap.Categories[0].Checked)
	assert.Equal(t, computation.Indeterminate, snap.Categories[0].State)

	snap, err = c.ToggleCategory(vegetation)
	require.NoError(t, err)
	assert.True(t, snap.Categories[0].Checked)

	_, err = c.ToggleItem("Unknown")
	assert.True(t, errors.Is(err, computation.ErrUnknownItem))
}

func TestRunComputation_Guards(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))

	_, err := c.ToggleItem(ndvi)
	require.NoError(t, err)
	_, err = c.RunComputation(context.Background())
	assert.True(t, errors.Is(err, ErrNotLoaded))

	loaded(t, c)
	_, err = c.ToggleItem(ndvi)
	require.NoError(t, err)
	_, err = c.RunComputation(context.Background())
	assert.True(t, errors.Is(err, computation.ErrEmptySelection))
}

func TestRunComputation_SingleNDVI(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))
	loaded(t, c)
	_, err := c.ToggleItem(ndvi)
	require.NoError(t, err)

	snap, err := c.RunComputation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, computation.StatusDone, snap.Computation)
	require.Len(t, snap.Results, 1)

	v, err := strconv.ParseFloat(snap.Results["NDVI"], 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, -1.0)
	assert.LessOrEqual(t, v, 1.0)
	assert.Regexp(t, `^-?\d\.\d{4}$`, snap.Results["NDVI"])
}

func TestRunComputation_SelectionChangeHidesResults(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))
	loaded(t, c)
	_, err := c.ToggleItem(ndvi)
	require.NoError(t, err)
	_, err = c.RunComputation(context.Background())
	require.NoError(t, err)

	snap, err := c.ToggleItem(evi)
	require.NoError(t, err)
	assert.Nil(t, snap.Results)
	assert.Equal(t, computation.StatusIdle, snap.Computation)
	assert.Equal(t, []string{ndvi, evi}, snap.Selection)

	snap, err = c.RunComputation(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Results, 2)
}

func TestRunComputation_ChangeDuringRunDropsResults(t *testing.T) {
	c, _ := newTestController(t, staticComparer(scenarioComparison(), nil))
	c.runner = computation.NewRunner(computation.DefaultCatalog, nil, 50*time.Millisecond)
	loaded(t, c)
	_, err := c.ToggleItem(ndvi)
	require.NoError(t, err)

	done := make(chan Snapshot)
	go func() {
		snap, _ := c.RunComputation(context.Background())
		done <- snap
	}()
	require.Eventually(t, func() bool {
		return c.Snapshot().Computation == computation.StatusRunning
	}, time.Second, time.Millisecond)

	_, err = c.RunComputation(context.Background())
	assert.True(t, errors.Is(err, computation.ErrRunInProgress))

	_, err = c.ToggleItem(evi)
	require.NoError(t, err)

	snap := <-done
	assert.Nil(t, snap.Results)
	assert.Equal(t, computation.StatusIdle, snap.Computation)
}

func TestStatusStrings(t *testing.T) {
	text, err := StatusLoaded.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "loaded", string(text))
	assert.Equal(t, "validationFailed", StatusValidationFailed.String())
	assert.Equal(t, "requestFailed", StatusRequestFailed.String())
	assert.Equal(t, "idle", StatusIdle.String())
}
