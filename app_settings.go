package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"imagery-timeline/internal/config"
	"imagery-timeline/internal/gibs"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	a.settings = settings
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.SetAutoRetry(settings.AutoRetryOnRateLimit)
	}

	// Note: Cache and render service settings require app restart to take effect
	log.Printf("Settings saved. Cache and render settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// ===================
// WMS Integration
// ===================

// FetchWMSLayers lists the layers advertised by the configured WMS endpoint
func (a *App) FetchWMSLayers() ([]gibs.LayerInfo, error) {
	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()

	layers, err := a.gibsClient.FetchCapabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch WMS capabilities: %w", err)
	}

	a.emitLog(fmt.Sprintf("Found %d layers at %s", len(layers), a.gibsClient.BaseURL()))
	return layers, nil
}
