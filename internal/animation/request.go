// Package animation requests a smoothly interpolated video between two dates
// from the render service and shows the result.
package animation

const (
	// FPS is sent with every request; it is not configurable.
	FPS = 30

	// Endpoint is the render service path the request is posted to.
	Endpoint = "/generate-rife-animation"

	// BusyMessage is shown while a request is in flight.
	BusyMessage = "Generating smooth animation..."

	// FailureMessage is the single notification shown for any failure.
	FailureMessage = "Failed to generate animation"
)

// Boundaries are the operator-chosen start and end dates (YYYY-MM-DD). They
// are independent of the playback controller's current date.
type Boundaries struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Viewport is read from the map when the request is made.
type Viewport struct {
	Extent [4]float64 `json:"extent"` // minX, minY, maxX, maxY
	Size   [2]int     `json:"size"`   // width, height in pixels
}

// Request is the wire body of POST /generate-rife-animation. BBox and Size
// are slices so a body with the wrong number of elements fails validation
// instead of being truncated or zero-padded.
type Request struct {
	BBox      []float64 `json:"bbox" validate:"len=4"`
	StartDate string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string    `json:"end_date" validate:"required,datetime=2006-01-02"`
	Size      []int     `json:"size" validate:"len=2,dive,min=1,max=4096"`
	FPS       int       `json:"fps" validate:"omitempty,min=1,max=120"`
}

// Response is the wire body of a successful render; Error is set by the
// service on failure.
type Response struct {
	VideoURL string `json:"video_url"`
	Error    string `json:"error,omitempty"`
}

// NewRequest builds the request body. No ordering check is made on the
// dates; the render service decides whether they make sense.
func NewRequest(b Boundaries, v Viewport) Request {
	return Request{
		BBox:      v.Extent[:],
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		Size:      v.Size[:],
		FPS:       FPS,
	}
}
