package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"imagery-timeline/internal/config"
)

func TestResolveVideoURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://127.0.0.1:5050", "/static/videos/a.mp4", "http://127.0.0.1:5050/static/videos/a.mp4"},
		{"http://render.local/api", "/static/videos/a.mp4", "http://render.local/static/videos/a.mp4"},
		{"http://127.0.0.1:5050", "https://cdn.example.com/a.mp4", "https://cdn.example.com/a.mp4"},
		{"", "/static/videos/a.mp4", "/static/videos/a.mp4"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveVideoURL(tt.base, tt.ref), tt.ref)
	}
}

func TestClientTimeout_OutlastsServer(t *testing.T) {
	s := config.DefaultSettings()
	server := time.Duration(s.RenderTimeoutSeconds) * time.Second

	assert.Equal(t, server+renderClientMargin, clientTimeout(s))

	s.RenderTimeoutSeconds = 30
	assert.Greater(t, clientTimeout(s), 30*time.Second)
}
