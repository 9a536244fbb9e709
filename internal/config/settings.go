package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"imagery-timeline/internal/common"
	"imagery-timeline/internal/mapview"
)

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Where rendered animations are written and served from
	VideosPath string `json:"videosPath"`

	// Cache settings
	CacheMaxSizeMB int `json:"cacheMaxSizeMB"`
	CacheTTLDays   int `json:"cacheTTLDays"`

	// Map settings
	WMSURL       string `json:"wmsURL"`
	DefaultLayer string `json:"defaultLayer"` // imagery layer identifier

	// Render service. An empty RendererURL starts the embedded service.
	RendererURL          string `json:"rendererURL"`
	RenderListenAddr     string `json:"renderListenAddr"`
	RenderLayer          string `json:"renderLayer"`
	FramesBetween        int    `json:"framesBetween"`
	RenderTimeoutSeconds int    `json:"renderTimeoutSeconds"`
	MaxConcurrentRenders int    `json:"maxConcurrentRenders"`
	ShowDateOverlay      bool   `json:"showDateOverlay"`
	DatePosition         string `json:"datePosition"`
	DateFontPath         string `json:"dateFontPath"` // TrueType/OpenType file, empty for the bitmap font
	OutputFormat         string `json:"outputFormat"`

	// Upstream WMS pacing
	WMSRequestsPerSecond float64 `json:"wmsRequestsPerSecond"`
	AutoRetryOnRateLimit bool    `json:"autoRetryOnRateLimit"`

	// UI preferences
	Theme string `json:"theme"` // "light", "dark", "system"
}

// OutputFormats lists the accepted values of OutputFormat
var OutputFormats = []string{"mp4", "avi", "gif"}

// DatePositions lists the accepted values of DatePosition
var DatePositions = []string{"top-left", "top-right", "bottom-left", "bottom-right", "center"}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	videosPath := filepath.Join(homeDir, "Videos", "imagery-timeline")

	return &UserSettings{
		VideosPath:           videosPath,
		CacheMaxSizeMB:       250,
		CacheTTLDays:         30,
		WMSURL:               common.GIBSWMSURL,
		DefaultLayer:         mapview.DefaultImageryLayer,
		RendererURL:          "",
		RenderListenAddr:     "127.0.0.1:0",
		RenderLayer:          mapview.DefaultImageryLayer,
		FramesBetween:        15,
		RenderTimeoutSeconds: 600,
		MaxConcurrentRenders: 1,
		ShowDateOverlay:      false,
		DatePosition:         "bottom-right",
		DateFontPath:         "",
		OutputFormat:         "mp4",
		WMSRequestsPerSecond: 4,
		AutoRetryOnRateLimit: true,
		Theme:                "system",
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// ~/.walkthru-earth/imagery-timeline/settings/
	baseDir := filepath.Join(homeDir, ".walkthru-earth", "imagery-timeline", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from an explicit path, merging defaults for missing fields
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Start from defaults so booleans absent from the file keep their default
	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any zeroed fields
	defaults := DefaultSettings()
	if settings.VideosPath == "" {
		settings.VideosPath = defaults.VideosPath
	}
	if settings.CacheMaxSizeMB <= 0 {
		settings.CacheMaxSizeMB = defaults.CacheMaxSizeMB
	}
	if settings.CacheTTLDays <= 0 {
		settings.CacheTTLDays = defaults.CacheTTLDays
	}
	if settings.WMSURL == "" {
		settings.WMSURL = defaults.WMSURL
	}
	if _, ok := mapview.FindImageryLayer(settings.DefaultLayer); !ok {
		settings.DefaultLayer = defaults.DefaultLayer
	}
	if settings.RenderListenAddr == "" {
		settings.RenderListenAddr = defaults.RenderListenAddr
	}
	if settings.RenderLayer == "" {
		settings.RenderLayer = defaults.RenderLayer
	}
	if settings.FramesBetween < 0 {
		settings.FramesBetween = defaults.FramesBetween
	}
	if settings.RenderTimeoutSeconds <= 0 {
		settings.RenderTimeoutSeconds = defaults.RenderTimeoutSeconds
	}
	if settings.MaxConcurrentRenders <= 0 {
		settings.MaxConcurrentRenders = defaults.MaxConcurrentRenders
	}
	if settings.WMSRequestsPerSecond <= 0 {
		settings.WMSRequestsPerSecond = defaults.WMSRequestsPerSecond
	}
	if !slices.Contains(DatePositions, settings.DatePosition) {
		settings.DatePosition = defaults.DatePosition
	}
	if !slices.Contains(OutputFormats, settings.OutputFormat) {
		settings.OutputFormat = defaults.OutputFormat
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo saves settings to an explicit path
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Validate checks settings coming from the frontend before they are saved
func (s *UserSettings) Validate() error {
	if s.VideosPath == "" {
		return fmt.Errorf("videos path cannot be empty")
	}
	if s.CacheMaxSizeMB <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if s.CacheTTLDays <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if _, ok := mapview.FindImageryLayer(s.DefaultLayer); !ok {
		return fmt.Errorf("unknown imagery layer: %s", s.DefaultLayer)
	}
	if s.FramesBetween < 0 || s.FramesBetween > 60 {
		return fmt.Errorf("frames between must be between 0 and 60")
	}
	if s.WMSRequestsPerSecond <= 0 {
		return fmt.Errorf("WMS request rate must be positive")
	}
	if !slices.Contains(OutputFormats, s.OutputFormat) {
		return fmt.Errorf("unknown output format: %s", s.OutputFormat)
	}
	if !slices.Contains(DatePositions, s.DatePosition) {
		return fmt.Errorf("unknown date position: %s", s.DatePosition)
	}
	if s.DateFontPath != "" {
		if _, err := os.Stat(s.DateFontPath); err != nil {
			return fmt.Errorf("date font not readable: %w", err)
		}
	}
	return nil
}
