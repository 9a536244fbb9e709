package renderserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"imagery-timeline/internal/common"
	"imagery-timeline/internal/gibs"
)

const defaultFrameSize = 512

// handleFrame proxies one GIBS frame through the frame cache
// URL format: /frames/{layer}/{date}?bbox=minx,miny,maxx,maxy&width=&height=&format=
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	date := chi.URLParam(r, "date")
	if !common.ValidateISO8601(date) {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()

	bbox := gibs.WorldBounds
	if raw := q.Get("bbox"); raw != "" {
		parsed, err := gibs.ParseBBox(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		bbox = parsed
	}

	width, ok := sizeParam(q.Get("width"))
	if !ok {
		http.Error(w, "Invalid width", http.StatusBadRequest)
		return
	}
	height, ok := sizeParam(q.Get("height"))
	if !ok {
		http.Error(w, "Invalid height", http.StatusBadRequest)
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "image/jpeg"
	}
	if format != "image/jpeg" && format != "image/png" {
		http.Error(w, "Unsupported format", http.StatusBadRequest)
		return
	}

	data, err := s.frames.FetchMap(r.Context(), gibs.MapRequest{
		Layer:  layer,
		BBox:   bbox,
		Width:  width,
		Height: height,
		Time:   date,
		Format: format,
	})
	switch {
	case errors.Is(err, gibs.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	case errors.Is(err, gibs.ErrServiceException):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		log.Printf("[RenderServer] Frame %s %s failed: %v", layer, date, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", format)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func sizeParam(raw string) (int, bool) {
	if raw == "" {
		return defaultFrameSize, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > 4096 {
		return 0, false
	}
	return v, true
}
