package gibs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"imagery-timeline/internal/common"
	"imagery-timeline/internal/ratelimit"
)

const (
	// UserAgent sent with every WMS request
	UserAgent = "imagery-timeline/1.0 (+https://walkthru.earth)"

	// DefaultFormat matches what the render pipeline decodes losslessly
	DefaultFormat = "image/png"

	// maxImageBytes bounds a single GetMap response
	maxImageBytes = 64 << 20
)

var (
	// ErrRateLimited is returned while GIBS is throttling this client
	ErrRateLimited = errors.New("GIBS rate limit active")

	// ErrServiceException is returned when GIBS answers with an OGC exception instead of an image
	ErrServiceException = errors.New("WMS service exception")
)

// FrameStore caches raw GetMap responses
type FrameStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte) error
}

// MapRequest describes a single GetMap call
type MapRequest struct {
	Layer  string
	BBox   BBox
	Width  int
	Height int
	Time   string // YYYY-MM-DD
	Format string
}

// cacheKey identifies a response by everything that changes the image
func (r MapRequest) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%dx%d:%s", r.Layer, r.Time, r.BBox, r.Width, r.Height, r.Format)
}

// Options configures a Client
type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	Cache             FrameStore         // optional
	RateLimit         *ratelimit.Handler // optional
}

// Client talks to the GIBS WMS endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	cache      FrameStore
	rateLimit  *ratelimit.Handler
}

// NewClient creates a GIBS client with system proxy support
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = common.GIBSWMSURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "gibs-wms",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// Open after 5 consecutive failures
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing day is the caller's problem, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrServiceException) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[GIBS] Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		breaker:   breaker,
		cache:     opts.Cache,
		rateLimit: opts.RateLimit,
	}
}

// BaseURL returns the WMS endpoint
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetMapURL builds a WMS 1.1.1 GetMap URL for the request
func (c *Client) GetMapURL(r MapRequest) string {
	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("REQUEST", "GetMap")
	q.Set("VERSION", "1.1.1")
	q.Set("LAYERS", r.Layer)
	q.Set("STYLES", "")
	q.Set("SRS", "EPSG:4326")
	q.Set("BBOX", r.BBox.String())
	q.Set("WIDTH", strconv.Itoa(r.Width))
	q.Set("HEIGHT", strconv.Itoa(r.Height))
	q.Set("FORMAT", r.Format)
	if r.Time != "" {
		q.Set("TIME", r.Time)
	}

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + q.Encode()
}

func normalize(r MapRequest) (MapRequest, error) {
	if r.Layer == "" {
		return r, fmt.Errorf("layer is required")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return r, fmt.Errorf("invalid image size %dx%d", r.Width, r.Height)
	}
	if r.Format == "" {
		r.Format = DefaultFormat
	}
	r.BBox = AdjustBBox(r.BBox)
	if !r.BBox.Valid() {
		return r, fmt.Errorf("bbox %s is empty after clamping to world bounds", r.BBox)
	}
	return r, nil
}

// GetMap fetches and decodes one image
func (c *Client) GetMap(ctx context.Context, r MapRequest) (image.Image, error) {
	data, err := c.FetchMap(ctx, r)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image for %s: %w", r.Layer, r.Time, err)
	}
	return img, nil
}

// FetchMap returns the raw GetMap response, served from cache when possible
func (c *Client) FetchMap(ctx context.Context, r MapRequest) ([]byte, error) {
	r, err := normalize(r)
	if err != nil {
		return nil, err
	}

	key := r.cacheKey()
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			return data, nil
		}
	}

	if c.rateLimit != nil && c.rateLimit.IsRateLimited(common.ProviderGIBS) {
		return nil, ErrRateLimited
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doGetMap(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(key, data); err != nil {
			log.Printf("[GIBS] Failed to cache frame %s: %v", r.Time, err)
		}
	}
	return data, nil
}

func (c *Client) doGetMap(ctx context.Context, r MapRequest) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetMapURL(r), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s for %s: %w", r.Layer, r.Time, err)
	}
	defer resp.Body.Close()

	if c.rateLimit != nil && c.rateLimit.CheckResponse(common.ProviderGIBS, resp) {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
	}
	if ratelimit.IsRateLimitStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GetMap request failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	// GIBS reports bad layers and dates as XML with a 200 status
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "xml") {
		return nil, fmt.Errorf("%w: %s", ErrServiceException, exceptionText(data))
	}

	return data, nil
}

// exceptionText pulls the first ServiceException message out of an XML body
func exceptionText(data []byte) string {
	s := string(data)
	start := strings.Index(s, "<ServiceException")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	s = s[start:]
	if gt := strings.Index(s, ">"); gt >= 0 {
		s = s[gt+1:]
	}
	if end := strings.Index(s, "</ServiceException>"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
