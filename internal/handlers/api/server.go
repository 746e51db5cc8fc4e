// Package api serves the image comparison endpoint the desktop app queries.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/changedetect"
	"imagery-compare/internal/common"
	"imagery-compare/internal/geo"
	"imagery-compare/internal/ratelimit"
	"imagery-compare/internal/stac"
	"imagery-compare/internal/validation"
)

const (
	// DefaultPublicURL is where clients reach the server with default flags
	DefaultPublicURL = "http://localhost:8080"

	// DefaultTileUpstream is the COG tiler tile requests are proxied to
	DefaultTileUpstream = "https://titiler.xyz/cog/tiles/WebMercatorQuad"

	// TilePath serves /{z}/{x}/{y}?url=<COG> tiles
	TilePath = "/api/tiles"

	maxTileBytes = 8 << 20
)

// FeatureFinder looks up the best catalog item for a point, date and cloud threshold.
// A nil feature with a nil error means nothing matched.
type FeatureFinder interface {
	FindBestFeature(ctx context.Context, coord geo.Coordinate, date string, cloudCover int) (*stac.Feature, error)
}

// Config holds server options
type Config struct {
	// PublicURL prefixes the tile templates handed to clients
	PublicURL    string
	TileUpstream string
	TileTimeout  time.Duration
	AllowOrigins []string
}

// Server manages the comparison HTTP server
type Server struct {
	echo         *echo.Echo
	httpServer   *http.Server
	finder       FeatureFinder
	cache        *cache.FeatureCache
	tiles        *cache.TileCache
	limiter      *ratelimit.Handler
	inflight     singleflight.Group
	publicURL    string
	tileUpstream string
	tileClient   *http.Client
	log          zerolog.Logger
}

// NewServer creates a server. The caches and limiter may be nil.
func NewServer(finder FeatureFinder, featureCache *cache.FeatureCache, tileCache *cache.TileCache, limiter *ratelimit.Handler, cfg Config, log zerolog.Logger) *Server {
	if cfg.PublicURL == "" {
		cfg.PublicURL = DefaultPublicURL
	}
	if cfg.TileUpstream == "" {
		cfg.TileUpstream = DefaultTileUpstream
	}
	if cfg.TileTimeout <= 0 {
		cfg.TileTimeout = 30 * time.Second
	}
	if len(cfg.AllowOrigins) == 0 {
		// the Wails frontend runs on wails://wails
		cfg.AllowOrigins = []string{"*"}
	}

	s := &Server{
		echo:         echo.New(),
		finder:       finder,
		cache:        featureCache,
		tiles:        tileCache,
		limiter:      limiter,
		publicURL:    strings.TrimRight(cfg.PublicURL, "/"),
		tileUpstream: strings.TrimRight(cfg.TileUpstream, "/"),
		tileClient:   &http.Client{Timeout: cfg.TileTimeout},
		log:          log.With().Str("component", "api").Logger(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	e.GET(changedetect.ComparePath, s.handleChangeDetection)
	e.GET(TilePath+"/:z/:x/:y", s.handleTile)
	e.GET("/api/health", s.handleHealth)

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and serves in the background. It returns the base URL.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start comparison server: %w", err)
	}

	baseURL := fmt.Sprintf("http://%s", listener.Addr().String())
	s.httpServer = &http.Server{Handler: s.echo}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("comparison server stopped")
		}
	}()

	s.log.Info().Str("url", baseURL).Msg("comparison server started")
	return baseURL, nil
}

// Shutdown stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (s *Server) handleChangeDetection(c echo.Context) error {
	latStr := c.QueryParam("lat")
	lonStr := c.QueryParam("lon")
	date1 := c.QueryParam("date1")
	date2 := c.QueryParam("date2")
	cloudCoverStr := c.QueryParam("cloudCover")

	if latStr == "" || lonStr == "" || date1 == "" || date2 == "" {
		return errorJSON(c, http.StatusBadRequest, "Missing required query parameters")
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid coordinates")
	}

	cloudCover := validation.DefaultCloudCover
	if cloudCoverStr != "" {
		n, err := strconv.Atoi(cloudCoverStr)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid cloud cover value")
		}
		if n < validation.MinCloudCover || n > validation.MaxCloudCover {
			return errorJSON(c, http.StatusBadRequest, "Cloud cover must be a number between 1 and 100")
		}
		cloudCover = n
	}

	coord := geo.Coordinate{Latitude: lat, Longitude: lon}
	dates := [2]string{date1, date2}
	var features [2]*stac.Feature
	var errs [2]error

	// both dates are looked up concurrently; outcomes are reported in date order
	g, ctx := errgroup.WithContext(c.Request().Context())
	for i, date := range dates {
		g.Go(func() error {
			features[i], errs[i] = s.lookup(ctx, coord, date, cloudCover)
			return nil
		})
	}
	_ = g.Wait()

	for i, date := range dates {
		if errs[i] != nil {
			return s.lookupError(c, errs[i])
		}
		if features[i] == nil {
			return errorJSON(c, http.StatusNotFound, fmt.Sprintf(
				"No clear image found for Date %d (%s) with cloud cover less than %d%%.", i+1, date, cloudCover))
		}
	}

	var images [2]*changedetect.ImageDescriptor
	for i, f := range features {
		img, ok := s.describe(f)
		if !ok {
			return errorJSON(c, http.StatusNotFound, fmt.Sprintf("No 'visual' asset URL found for Date %d.", i+1))
		}
		images[i] = img
	}

	return c.JSON(http.StatusOK, changedetect.Comparison{Before: images[0], After: images[1]})
}

// lookup consults the cache before the catalog. Malformed dates match nothing.
func (s *Server) lookup(ctx context.Context, coord geo.Coordinate, date string, cloudCover int) (*stac.Feature, error) {
	if !common.ValidateISO8601(date) {
		s.log.Warn().Str("date", date).Msg("invalid date format, expected YYYY-MM-DD")
		return nil, nil
	}

	key := cache.NewLookupKey(coord, date, cloudCover)
	if s.cache != nil {
		if f, ok := s.cache.Get(key); ok {
			return f, nil
		}
	}

	// identical concurrent lookups share one catalog call, which must outlive the
	// caller that started it; the catalog client's timeout bounds it
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.inflight.Do(fmt.Sprint(key), func() (interface{}, error) {
		f, err := s.finder.FindBestFeature(flightCtx, coord, date, cloudCover)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Add(key, f)
		}
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*stac.Feature), nil
}

func (s *Server) lookupError(c echo.Context, err error) error {
	var rle *stac.RateLimitError
	if errors.As(err, &rle) {
		return errorJSON(c, http.StatusServiceUnavailable, rle.Error())
	}
	s.log.Error().Err(err).Msg("catalog search failed")
	return errorJSON(c, http.StatusBadGateway, "Failed to search the imagery catalog.")
}

// describe turns a catalog item into the descriptor the app renders
func (s *Server) describe(f *stac.Feature) (*changedetect.ImageDescriptor, bool) {
	href, ok := f.VisualHref()
	if !ok {
		return nil, false
	}
	bounds, _ := f.Bounds()

	return &changedetect.ImageDescriptor{
		ImageURL:        href,
		TileURLTemplate: s.publicURL + TilePath + "/{z}/{x}/{y}?" + url.Values{"url": {href}}.Encode(),
		Bounds:          bounds,
		DateAcquired:    f.Properties.Datetime,
	}, true
}

type healthResponse struct {
	Status    string                    `json:"status"`
	Cache     *cache.Stats              `json:"cache,omitempty"`
	Tiles     *cache.Stats              `json:"tiles,omitempty"`
	RateLimit *ratelimit.RateLimitEvent `json:"rateLimit,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok"}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache = &stats
	}
	if s.tiles != nil {
		stats := s.tiles.Stats()
		resp.Tiles = &stats
	}
	if s.limiter != nil {
		resp.RateLimit = s.limiter.GetCurrentState(stac.Provider)
		if s.limiter.IsRateLimited(stac.Provider) {
			resp.Status = "rate_limited"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleTile proxies one tile of a COG to the upstream tiler, with caching.
// Tiles outside the image answer 204.
func (s *Server) handleTile(c echo.Context) error {
	imageURL := c.QueryParam("url")
	if imageURL == "" {
		return c.String(http.StatusBadRequest, "Missing 'url' query parameter")
	}
	z, errZ := strconv.Atoi(c.Param("z"))
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || x < 0 || y < 0 {
		return c.String(http.StatusBadRequest, "Invalid tile coordinates")
	}

	key := cache.TileKey(imageURL, z, x, y)
	if s.tiles != nil {
		if tile, ok := s.tiles.Get(key); ok {
			return serveTile(c, tile, "HIT")
		}
	}

	tile, found, err := s.fetchTile(c.Request().Context(), imageURL, z, x, y)
	if err != nil {
		s.log.Error().Err(err).Str("url", imageURL).Int("z", z).Int("x", x).Int("y", y).Msg("tile fetch failed")
		return c.String(http.StatusInternalServerError, "Failed to generate tile")
	}
	if !found {
		return c.NoContent(http.StatusNoContent)
	}

	if s.tiles != nil {
		s.tiles.Add(key, tile)
	}
	return serveTile(c, tile, "MISS")
}

func serveTile(c echo.Context, tile cache.Tile, status string) error {
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	c.Response().Header().Set("X-Cache-Status", status)
	return c.Blob(http.StatusOK, tile.ContentType, tile.Data)
}

// fetchTile asks the upstream tiler for z/x/y. found is false when the tile lies
// outside the image.
func (s *Server) fetchTile(ctx context.Context, imageURL string, z, x, y int) (cache.Tile, bool, error) {
	tileURL := fmt.Sprintf("%s/%d/%d/%d?%s", s.tileUpstream, z, x, y, url.Values{"url": {imageURL}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return cache.Tile{}, false, fmt.Errorf("failed to create tile request: %w", err)
	}

	resp, err := s.tileClient.Do(req)
	if err != nil {
		return cache.Tile{}, false, fmt.Errorf("failed to call tiler: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return cache.Tile{}, false, nil
	default:
		return cache.Tile{}, false, fmt.Errorf("tiler returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return cache.Tile{}, false, fmt.Errorf("failed to read tile: %w", err)
	}
	if len(data) == 0 {
		return cache.Tile{}, false, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return cache.Tile{ContentType: contentType, Data: data}, true, nil
}
