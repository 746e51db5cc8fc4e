package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RetryStrategy defines the backoff intervals for rate limit retries
type RetryStrategy struct {
	Intervals []time.Duration // e.g., [1min, 2min, 5min, 10min]
}

// DefaultRetryStrategy returns the default backoff schedule
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			1 * time.Minute,
			2 * time.Minute,
			5 * time.Minute,
			10 * time.Minute, // used for every later attempt
		},
	}
}

// RateLimitEvent represents a rate limit occurrence
type RateLimitEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	StatusCode   int       `json:"statusCode"`   // HTTP status code (403, 429, 509)
	RetryAttempt int       `json:"retryAttempt"` // 0 = first occurrence
	NextRetryAt  time.Time `json:"nextRetryAt"`
	Message      string    `json:"message"` // User-friendly message
}

// Handler tracks which upstream providers are rate limited. While a provider is
// inside its backoff window callers should not contact it; once the window has
// passed the next call goes through and either clears or extends the limit.
type Handler struct {
	mu          sync.RWMutex
	rateLimited map[string]*RateLimitEvent // provider -> current rate limit state
	strategy    *RetryStrategy
	onRateLimit func(event RateLimitEvent)
	onRecovered func(provider string)
	now         func() time.Time
	log         zerolog.Logger
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy, log zerolog.Logger) *Handler {
	if strategy == nil || len(strategy.Intervals) == 0 {
		strategy = DefaultRetryStrategy()
	}

	return &Handler{
		rateLimited: make(map[string]*RateLimitEvent),
		strategy:    strategy,
		now:         time.Now,
		log:         log.With().Str("component", "ratelimit").Logger(),
	}
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// SetOnRecovered sets the callback for recovery from rate limit
func (h *Handler) SetOnRecovered(callback func(provider string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// Now returns the handler's clock. Take it before a provider call and pass it to
// CheckStatus so that a late success cannot clear a newer rate limit.
func (h *Handler) Now() time.Time {
	return h.now()
}

// Current returns a copy of the provider's rate limit event while it is inside its
// backoff window
func (h *Handler) Current(provider string) (RateLimitEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, limited := h.rateLimited[provider]
	if !limited || !h.now().Before(event.NextRetryAt) {
		return RateLimitEvent{}, false
	}
	return *event, true
}

// IsRateLimited reports whether provider is inside its backoff window
func (h *Handler) IsRateLimited(provider string) bool {
	_, limited := h.Current(provider)
	return limited
}

// IsRateLimitStatus reports whether an HTTP status code signals rate limiting
func IsRateLimitStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || // 429
		statusCode == http.StatusForbidden || // 403, some providers use it for throttling
		statusCode == 509 // Bandwidth Limit Exceeded
}

// CheckStatus records the outcome of a provider call that started at startedAt.
// For a rate limit status it returns the recorded event and true. Any other status
// clears the provider's state, unless that state was recorded after startedAt.
func (h *Handler) CheckStatus(provider string, startedAt time.Time, statusCode int) (RateLimitEvent, bool) {
	if !IsRateLimitStatus(statusCode) {
		h.checkRecovery(provider, startedAt)
		return RateLimitEvent{}, false
	}

	return h.recordRateLimit(provider, statusCode), true
}

// CheckResponse is CheckStatus for an HTTP response
func (h *Handler) CheckResponse(provider string, startedAt time.Time, resp *http.Response) (RateLimitEvent, bool) {
	return h.CheckStatus(provider, startedAt, resp.StatusCode)
}

func (h *Handler) recordRateLimit(provider string, statusCode int) RateLimitEvent {
	h.mu.Lock()

	retryAttempt := 0
	if existing, exists := h.rateLimited[provider]; exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	interval := h.strategy.Intervals[len(h.strategy.Intervals)-1]
	if retryAttempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[retryAttempt]
	}

	now := h.now()
	event := RateLimitEvent{
		Timestamp:    now,
		Provider:     provider,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  now.Add(interval),
		Message:      buildMessage(provider, statusCode, interval),
	}
	h.rateLimited[provider] = &event
	callback := h.onRateLimit
	h.mu.Unlock()

	h.log.Warn().Str("provider", provider).Int("status", statusCode).Int("attempt", retryAttempt).
		Time("nextRetryAt", event.NextRetryAt).Msg("provider rate limited")

	if callback != nil {
		callback(event)
	}
	return event
}

func (h *Handler) checkRecovery(provider string, startedAt time.Time) {
	h.mu.Lock()
	event, exists := h.rateLimited[provider]
	if !exists || !event.Timestamp.Before(startedAt) {
		h.mu.Unlock()
		return
	}
	delete(h.rateLimited, provider)
	callback := h.onRecovered
	h.mu.Unlock()

	h.log.Info().Str("provider", provider).Msg("rate limit cleared")
	if callback != nil {
		callback(provider)
	}
}

// GetCurrentState returns a copy of the rate limit state for a provider, or nil
func (h *Handler) GetCurrentState(provider string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.rateLimited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func buildMessage(provider string, statusCode int, wait time.Duration) string {
	minutes := int(wait.Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("The %s imagery catalog is rate limiting requests (HTTP %d). Please try again in %d minute(s).",
		provider, statusCode, minutes)
}
