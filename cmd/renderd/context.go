package main

import (
	"strings"
	"sync"

	"imagery-timeline/internal/cache"
	"imagery-timeline/internal/config"
	"imagery-timeline/internal/gibs"
	"imagery-timeline/internal/ratelimit"
)

type commandContext struct {
	configFlag *string

	settingsOnce sync.Once
	settings     *config.UserSettings
	settingsErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureSettings() (*config.UserSettings, error) {
	c.settingsOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			path = config.GetSettingsPath()
		}
		s, err := config.LoadSettingsFrom(path)
		if err != nil {
			c.settingsErr = err
			return
		}
		c.settings = s
	})
	return c.settings, c.settingsErr
}

// openCache opens the shared frame cache. A nil cache is returned with the
// error so callers may continue uncached.
func (c *commandContext) openCache(s *config.UserSettings, dir string) (*cache.FrameCache, error) {
	if dir == "" {
		dir = cache.GetCacheDir()
	}
	return cache.NewFrameCache(dir, s.CacheMaxSizeMB, s.CacheTTLDays)
}

// newGIBSClient builds a WMS client from settings; fc may be nil
func (c *commandContext) newGIBSClient(s *config.UserSettings, fc *cache.FrameCache, rl *ratelimit.Handler) *gibs.Client {
	opts := gibs.Options{
		BaseURL:           s.WMSURL,
		RequestsPerSecond: s.WMSRequestsPerSecond,
		RateLimit:         rl,
	}
	if fc != nil {
		opts.Cache = fc
	}
	return gibs.NewClient(opts)
}
