package ratelimit

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"imagery-timeline/internal/common"
)

// RetryStrategy defines the backoff intervals for rate limit retries
type RetryStrategy struct {
	Intervals  []time.Duration // e.g., [30s, 1min, 2min, 5min]
	MaxRetries int
}

// DefaultRetryStrategy returns the default backoff strategy. GIBS throttles
// per client and recovers quickly, so intervals are short.
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			30 * time.Second,
			1 * time.Minute,
			2 * time.Minute,
			5 * time.Minute,
		},
		MaxRetries: 6,
	}
}

// RateLimitEvent represents a rate limit occurrence
type RateLimitEvent struct {
	Timestamp    time.Time `json:"timestamp" ts_type:"string"`
	Provider     string    `json:"provider"`     // "nasa_gibs"
	StatusCode   int       `json:"statusCode"`   // HTTP status code (403, 429, etc.)
	RetryAttempt int       `json:"retryAttempt"` // Current retry attempt (0 = first occurrence)
	NextRetryAt  time.Time `json:"nextRetryAt" ts_type:"string"`
	Message      string    `json:"message"` // User-friendly message
}

// Handler manages rate limit detection and retry logic
type Handler struct {
	mu               sync.RWMutex
	rateLimited      map[string]*RateLimitEvent // provider -> current rate limit state
	strategy         *RetryStrategy
	onRateLimit      func(event RateLimitEvent) // Callback for UI notification
	onRetry          func(event RateLimitEvent) // Callback for retry notification
	onRecovered      func(provider string)      // Callback when rate limit clears
	autoRetryEnabled bool
	now              func() time.Time
	ctx              context.Context
	cancel           context.CancelFunc
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy) *Handler {
	if strategy == nil || len(strategy.Intervals) == 0 {
		strategy = DefaultRetryStrategy()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Handler{
		rateLimited:      make(map[string]*RateLimitEvent),
		strategy:         strategy,
		autoRetryEnabled: true,
		now:              time.Now,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// SetOnRetry sets the callback for retry attempts
func (h *Handler) SetOnRetry(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRetry = callback
}

// SetOnRecovered sets the callback for recovery from rate limit
func (h *Handler) SetOnRecovered(callback func(provider string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// IsRateLimited reports whether a provider is rate limited and its retry
// time has not yet passed.
func (h *Handler) IsRateLimited(provider string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, limited := h.rateLimited[provider]
	return limited && h.now().Before(event.NextRetryAt)
}

// IsRateLimitStatus reports whether an HTTP status code signals throttling
func IsRateLimitStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusForbidden ||
		statusCode == 509 // Bandwidth Limit Exceeded
}

// CheckResponse analyzes an HTTP response for rate limit indicators
func (h *Handler) CheckResponse(provider string, resp *http.Response) bool {
	if !IsRateLimitStatus(resp.StatusCode) {
		// Check if we were previously rate limited and have now recovered
		h.checkRecovery(provider)
		return false
	}

	h.recordRateLimit(provider, resp.StatusCode)
	return true
}

// recordRateLimit records a rate limit event and schedules retry
func (h *Handler) recordRateLimit(provider string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, exists := h.rateLimited[provider]

	retryAttempt := 0
	if exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	// Use last interval for all subsequent retries
	interval := h.strategy.Intervals[len(h.strategy.Intervals)-1]
	if retryAttempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[retryAttempt]
	}

	now := h.now()
	nextRetryAt := now.Add(interval)

	event := RateLimitEvent{
		Timestamp:    now,
		Provider:     provider,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  nextRetryAt,
		Message:      buildMessage(provider, statusCode, retryAttempt, interval),
	}

	h.rateLimited[provider] = &event

	log.Printf("[RateLimit] %s rate limited (attempt %d). Next retry at %s",
		provider, retryAttempt, nextRetryAt.Format(time.RFC3339))

	if h.onRateLimit != nil {
		go h.onRateLimit(event)
	}

	if h.autoRetryEnabled && retryAttempt < h.strategy.MaxRetries {
		go h.scheduleRetry(provider, event, interval)
	}
}

// scheduleRetry notifies the UI once the backoff interval has elapsed
func (h *Handler) scheduleRetry(provider string, event RateLimitEvent, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		h.mu.RLock()
		current, exists := h.rateLimited[provider]
		stale := !exists || !current.Timestamp.Equal(event.Timestamp)
		onRetry := h.onRetry
		h.mu.RUnlock()
		if stale {
			// Rate limit was already cleared or replaced
			return
		}

		log.Printf("[RateLimit] Auto-retrying %s after %s wait", provider, wait)

		// The retry itself happens on the next fetch, which checks IsRateLimited
		if onRetry != nil {
			go onRetry(event)
		}

	case <-h.ctx.Done():
		return
	}
}

// checkRecovery checks if we've recovered from a rate limit
func (h *Handler) checkRecovery(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[provider]; exists {
		delete(h.rateLimited, provider)
		log.Printf("[RateLimit] %s rate limit cleared - fetching resumed", provider)

		if h.onRecovered != nil {
			go h.onRecovered(provider)
		}
	}
}

// ManualRetry clears the rate limit so the next fetch goes through
func (h *Handler) ManualRetry(provider string) {
	h.mu.Lock()
	event, exists := h.rateLimited[provider]
	if !exists {
		h.mu.Unlock()
		return
	}

	log.Printf("[RateLimit] Manual retry requested for %s", provider)

	delete(h.rateLimited, provider)
	onRetry := h.onRetry
	h.mu.Unlock()

	if onRetry != nil {
		go onRetry(*event)
	}
}

// SetAutoRetry enables or disables automatic retries
func (h *Handler) SetAutoRetry(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.autoRetryEnabled = enabled
}

// GetCurrentState returns the current rate limit state for a provider
func (h *Handler) GetCurrentState(provider string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.rateLimited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func buildMessage(provider string, statusCode int, retryAttempt int, wait time.Duration) string {
	providerName := provider
	if provider == common.ProviderGIBS {
		providerName = common.DisplayNameGIBS
	}

	if retryAttempt == 0 {
		return fmt.Sprintf(
			"%s rate limit detected (HTTP %d). Rendering paused.\n\n"+
				"Automatic retry in %s. You can also click 'Retry Now'.",
			providerName, statusCode, wait.Round(time.Second))
	}

	return fmt.Sprintf(
		"%s still rate limited (retry attempt %d).\n\n"+
			"Next automatic retry in %s.",
		providerName, retryAttempt+1, wait.Round(time.Second))
}

// Close shuts down the rate limit handler
func (h *Handler) Close() {
	h.cancel()
}
