// Package stac searches a STAC API for the clearest Sentinel-2 scene covering a point.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"imagery-compare/internal/common"
	"imagery-compare/internal/geo"
	"imagery-compare/internal/ratelimit"
)

const (
	// DefaultSearchURL is the Element 84 Earth Search endpoint
	DefaultSearchURL = "https://earth-search.aws.element84.com/v1/search"

	// DefaultCollection is Sentinel-2 level 2A surface reflectance
	DefaultCollection = "sentinel-2-l2a"

	// VisualAsset is the true color COG asset key
	VisualAsset = "visual"

	// Provider names the catalog in rate limit state
	Provider = "earth-search"
)

// SortField is one entry of a STAC sortby clause
type SortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// SearchRequest is the body of a STAC item search
type SearchRequest struct {
	Collections []string                  `json:"collections"`
	Intersects  *geojson.Geometry         `json:"intersects"`
	Datetime    string                    `json:"datetime"`
	Limit       int                       `json:"limit"`
	SortBy      []SortField               `json:"sortby"`
	Query       map[string]map[string]int `json:"query"`
}

// Asset is a downloadable file of a STAC item
type Asset struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// Properties holds the item properties this service reads
type Properties struct {
	Datetime   string  `json:"datetime"`
	CloudCover float64 `json:"eo:cloud_cover"`
}

// Feature is one STAC item
type Feature struct {
	ID         string           `json:"id"`
	BBox       geojson.BBox     `json:"bbox"`
	Properties Properties       `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

// VisualHref returns the href of the visual asset
func (f *Feature) VisualHref() (string, bool) {
	asset, ok := f.Assets[VisualAsset]
	if !ok || asset.Href == "" {
		return "", false
	}
	return asset.Href, true
}

// Bounds converts the item bbox to map bounds
func (f *Feature) Bounds() (geo.Bounds, bool) {
	return geo.BoundsFromBBox(f.BBox)
}

// FeatureCollection is a STAC search response
type FeatureCollection struct {
	Features []Feature `json:"features"`
}

// RateLimitError is returned while the catalog is rate limiting requests
type RateLimitError struct {
	Event ratelimit.RateLimitEvent
}

func (e *RateLimitError) Error() string {
	return e.Event.Message
}

// NewSearchRequest builds the search for the least cloudy, most recent scene over
// coord within DefaultWindowDays of date and below cloudCover percent.
func NewSearchRequest(collection string, coord geo.Coordinate, date string, cloudCover int) (SearchRequest, error) {
	window, err := common.DateWindow(date, common.DefaultWindowDays)
	if err != nil {
		return SearchRequest{}, err
	}

	return SearchRequest{
		Collections: []string{collection},
		Intersects:  geojson.NewGeometry(orb.Point{coord.Longitude, coord.Latitude}),
		Datetime:    window,
		Limit:       1,
		SortBy: []SortField{
			{Field: "properties.eo:cloud_cover", Direction: "asc"},
			{Field: "properties.datetime", Direction: "desc"},
		},
		Query: map[string]map[string]int{
			"eo:cloud_cover": {"lt": cloudCover},
		},
	}, nil
}

// Client talks to a STAC search endpoint
type Client struct {
	searchURL  string
	collection string
	httpClient *http.Client
	limiter    *ratelimit.Handler
	log        zerolog.Logger
}

// NewClient creates a STAC client. limiter may be nil.
func NewClient(searchURL string, timeout time.Duration, limiter *ratelimit.Handler, log zerolog.Logger) *Client {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	return &Client{
		searchURL:  searchURL,
		collection: DefaultCollection,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		log:        log.With().Str("component", "stac").Logger(),
	}
}

// FindBestFeature returns the best matching item, or nil when the search is empty
func (c *Client) FindBestFeature(ctx context.Context, coord geo.Coordinate, date string, cloudCover int) (*Feature, error) {
	var startedAt time.Time
	if c.limiter != nil {
		if event, limited := c.limiter.Current(Provider); limited {
			return nil, &RateLimitError{Event: event}
		}
		startedAt = c.limiter.Now()
	}

	searchReq, err := NewSearchRequest(c.collection, coord, date, cloudCover)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")

	c.log.Debug().Str("date", date).Str("datetime", searchReq.Datetime).Int("cloudCover", cloudCover).Msg("searching catalog")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call STAC API: %w", err)
	}
	defer resp.Body.Close()

	if c.limiter != nil {
		if event, limited := c.limiter.CheckResponse(Provider, startedAt, resp); limited {
			return nil, &RateLimitError{Event: event}
		}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("STAC API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var fc FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to parse STAC response: %w", err)
	}

	if len(fc.Features) == 0 {
		c.log.Debug().Str("date", date).Int("cloudCover", cloudCover).Msg("no features found")
		return nil, nil
	}
	return &fc.Features[0], nil
}
