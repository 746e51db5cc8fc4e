// Package changedetect talks to the imagery-comparison service.
package changedetect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imagery-compare/internal/validation"
)

const (
	// ComparePath is the comparison endpoint relative to the service base URL
	ComparePath = "/api/change-detection"

	// maxErrorBody caps how much of an error body is surfaced to the user
	maxErrorBody = 4096
)

// Client calls GET /api/change-detection
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the service at baseURL with system proxy support
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: log.With().Str("component", "changedetect").Logger(),
	}
}

// CompareURL builds the request URL for req
func (c *Client) CompareURL(req validation.ComparisonRequest) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(req.Coordinate.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(req.Coordinate.Longitude, 'f', -1, 64))
	q.Set("date1", req.Date1)
	q.Set("date2", req.Date2)
	q.Set("cloudCover", strconv.Itoa(req.CloudCover))
	return c.baseURL + ComparePath + "?" + q.Encode()
}

// Compare issues exactly one request and returns both descriptors.
// Errors are *ServiceError or *NetworkError.
func (c *Client) Compare(ctx context.Context, req validation.ComparisonRequest) (*Comparison, error) {
	endpoint := c.CompareURL(req)
	c.log.Debug().Str("url", endpoint).Msg("requesting comparison")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
	}

	var result Comparison
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Malformed response from comparison service: %v", err),
		}
	}
	if result.Before == nil || result.After == nil {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    "Malformed response from comparison service: both image1 and image2 are required.",
		}
	}

	return &result, nil
}

// errorMessage picks the user-facing text for a failed response: the "error" field of
// a JSON object body, else the body text, else a message built from the status code.
func errorMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("HTTP error! status: %d", status)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return text
}
