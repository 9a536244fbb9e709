package renderserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"imagery-timeline/internal/animation"
	"imagery-timeline/internal/common"
	"imagery-timeline/internal/gibs"
	"imagery-timeline/internal/render"
)

// maxRequestBytes bounds the generate request body
const maxRequestBytes = 64 << 10

// VideoURLPrefix is where generated videos are served from
const VideoURLPrefix = "/static/videos/"

var videoContentTypes = map[string]string{
	".mp4": "video/mp4",
	".avi": "video/x-msvideo",
	".gif": "image/gif",
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[RenderServer] Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, animation.Response{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"rendersActive": len(s.renders),
		"rendersMax":    cap(s.renders),
	})
}

// handleGenerate renders an animation for POST /generate-rife-animation
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req animation.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	job, err := jobFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()

	select {
	case s.renders <- struct{}{}:
		defer func() { <-s.renders }()
	case <-ctx.Done():
		writeError(w, http.StatusServiceUnavailable, "render service is busy")
		return
	}

	log.Printf("[RenderServer] Rendering %s..%s bbox=%v size=%v fps=%d",
		req.StartDate, req.EndDate, req.BBox, req.Size, req.FPS)

	result, err := s.animator.Render(ctx, job)
	switch {
	case errors.Is(err, render.ErrNoImages):
		writeError(w, http.StatusBadRequest, render.ErrNoImages.Error())
		return
	case errors.Is(err, render.ErrInvalidJob):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[RenderServer] Render failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, animation.Response{VideoURL: VideoURLPrefix + result.FileName})
}

func jobFromRequest(req animation.Request) (render.Job, error) {
	start, err := common.ParseISO8601(req.StartDate)
	if err != nil {
		return render.Job{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := common.ParseISO8601(req.EndDate)
	if err != nil {
		return render.Job{}, fmt.Errorf("invalid end_date: %w", err)
	}

	// Lengths were checked by the validator
	var bbox gibs.BBox
	copy(bbox[:], req.BBox)

	return render.Job{
		BBox:   bbox,
		Start:  start,
		End:    end,
		Width:  req.Size[0],
		Height: req.Size[1],
		FPS:    req.FPS,
	}, nil
}

// validationMessage flattens validator errors into one line
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// handleVideo serves a generated video by file name
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")

	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	contentType, ok := videoContentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	f, err := os.Open(filepath.Join(s.animator.VideosDir(), name))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
