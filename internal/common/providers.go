package common

// Provider name constants for consistent naming across the application
const (
	// ProviderGIBS is the cache and rate-limit identifier for NASA GIBS imagery
	ProviderGIBS = "nasa_gibs"

	// DisplayNameGIBS is the human-readable name shown in the UI
	DisplayNameGIBS = "NASA GIBS"

	// GIBSWMSURL is the EPSG:4326 "best" WMS endpoint
	GIBSWMSURL = "https://gibs.earthdata.nasa.gov/wms/epsg4326/best/wms.cgi"
)
