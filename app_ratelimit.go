package main

import (
	"imagery-timeline/internal/common"
	"imagery-timeline/internal/ratelimit"
)

// Rate Limit Management Functions (Wails-exported)

// ManualRetryRateLimit allows user to manually trigger a retry for a rate-limited provider.
// An empty provider means GIBS.
func (a *App) ManualRetryRateLimit(provider string) {
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.ManualRetry(providerOrDefault(provider))
	}
}

// GetRateLimitStatus returns the current rate limit state for a provider
func (a *App) GetRateLimitStatus(provider string) *ratelimit.RateLimitEvent {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.GetCurrentState(providerOrDefault(provider))
	}
	return nil
}

// IsRateLimited checks if a provider is currently rate limited
func (a *App) IsRateLimited(provider string) bool {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.IsRateLimited(providerOrDefault(provider))
	}
	return false
}

// SetAutoRetryRateLimit enables or disables automatic rate limit retries
func (a *App) SetAutoRetryRateLimit(enabled bool) {
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.SetAutoRetry(enabled)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settings != nil {
		a.settings.AutoRetryOnRateLimit = enabled
		// Note: Settings will be saved when app closes via shutdown() hook
	}
}

func providerOrDefault(provider string) string {
	if provider == "" {
		return common.ProviderGIBS
	}
	return provider
}

// Cache Management Functions (Wails-exported)

// CacheStats represents cache statistics for frontend
type CacheStats struct {
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"sizeBytes"`
	MaxBytes  int64   `json:"maxBytes"`
	SizeMB    float64 `json:"sizeMB"`
	MaxMB     float64 `json:"maxMB"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	CachePath string  `json:"cachePath"`
}

// GetCacheStats returns current cache statistics
func (a *App) GetCacheStats() CacheStats {
	if a.frameCache == nil {
		return CacheStats{}
	}

	stats := a.frameCache.Stats()

	return CacheStats{
		Entries:   stats.Entries,
		SizeBytes: stats.SizeBytes,
		MaxBytes:  stats.MaxBytes,
		SizeMB:    float64(stats.SizeBytes) / 1024 / 1024,
		MaxMB:     float64(stats.MaxBytes) / 1024 / 1024,
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		CachePath: stats.Path,
	}
}

// ClearCache removes all cached frames
func (a *App) ClearCache() error {
	if a.frameCache != nil {
		return a.frameCache.Clear()
	}
	return nil
}
