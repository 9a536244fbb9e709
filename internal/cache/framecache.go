package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxEntries caps the index length. Eviction is normally driven by size.
const maxEntries = 100_000

const frameExt = ".frame"

// FrameCache keeps fetched WMS frames on disk with an LRU index.
// Entries are addressed by the SHA-256 of their key, so the index can be
// rebuilt from the directory alone after a restart.
type FrameCache struct {
	baseDir  string
	maxSize  int64 // Maximum cache size in bytes
	currSize int64 // Current cache size (atomic)
	ttl      time.Duration
	mu       sync.Mutex // serializes writers
	index    *lru.Cache[string, *Entry]

	hits   atomic.Int64
	misses atomic.Int64
}

// Entry represents a cached frame
type Entry struct {
	Hash       string
	FilePath   string
	Size       int64
	CreateTime time.Time
}

// Stats is a snapshot of cache usage
type Stats struct {
	Entries   int    `json:"entries"`
	SizeBytes int64  `json:"sizeBytes"`
	MaxBytes  int64  `json:"maxBytes"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Path      string `json:"path"`
}

// NewFrameCache opens (or creates) a frame cache in baseDir
func NewFrameCache(baseDir string, maxSizeMB int, ttlDays int) (*FrameCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &FrameCache{
		baseDir: baseDir,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		ttl:     time.Duration(ttlDays) * 24 * time.Hour,
	}

	index, err := lru.NewWithEvict[string, *Entry](maxEntries, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache index: %w", err)
	}
	c.index = index

	if err := c.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to load cache index: %w", err)
	}

	if removed := c.Prune(); removed > 0 {
		log.Printf("[FrameCache] Pruned %d expired frames", removed)
	}
	c.evict()

	return c, nil
}

// onEvict runs whenever an entry leaves the index
func (c *FrameCache) onEvict(_ string, e *Entry) {
	os.Remove(e.FilePath) // Best effort cleanup
	atomic.AddInt64(&c.currSize, -e.Size)
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c *FrameCache) pathFor(hash string) string {
	return filepath.Join(c.baseDir, hash[:2], hash+frameExt)
}

func (c *FrameCache) expired(e *Entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.CreateTime) > c.ttl
}

// Get retrieves a frame from cache
func (c *FrameCache) Get(key string) ([]byte, bool) {
	hash := hashKey(key)

	entry, ok := c.index.Get(hash)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.expired(entry, time.Now()) {
		c.index.Remove(hash)
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		// File vanished underneath us
		c.index.Remove(hash)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return data, true
}

// Set stores a frame in cache
func (c *FrameCache) Set(key string, data []byte) error {
	hash := hashKey(key)
	filePath := c.pathFor(hash)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop the old entry first so its size is released and the file is rewritten below
	c.index.Remove(hash)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache subdirectory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	size := int64(len(data))
	c.index.Add(hash, &Entry{
		Hash:       hash,
		FilePath:   filePath,
		Size:       size,
		CreateTime: time.Now(),
	})
	atomic.AddInt64(&c.currSize, size)

	c.evictLocked()
	return nil
}

// evict removes least recently used frames until the cache fits
func (c *FrameCache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
}

func (c *FrameCache) evictLocked() {
	if atomic.LoadInt64(&c.currSize) <= c.maxSize {
		return
	}

	// Target size: 90% of max to avoid thrashing
	target := c.maxSize * 9 / 10
	for atomic.LoadInt64(&c.currSize) > target && c.index.Len() > 0 {
		c.index.RemoveOldest()
	}
}

// Prune removes expired frames and returns how many were removed
func (c *FrameCache) Prune() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, hash := range c.index.Keys() {
		entry, ok := c.index.Peek(hash)
		if ok && c.expired(entry, now) {
			c.index.Remove(hash)
			removed++
		}
	}
	return removed
}

// loadIndex scans the cache directory and rebuilds the index, oldest first
func (c *FrameCache) loadIndex() error {
	var entries []*Entry

	err := filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if info.IsDir() || filepath.Ext(path) != frameExt {
			return nil
		}

		hash := filepath.Base(path)
		hash = hash[:len(hash)-len(frameExt)]
		if len(hash) != sha256.Size*2 {
			return nil
		}

		entries = append(entries, &Entry{
			Hash:       hash,
			FilePath:   path,
			Size:       info.Size(),
			CreateTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreateTime.Before(entries[j].CreateTime)
	})

	for _, e := range entries {
		c.index.Add(e.Hash, e)
		atomic.AddInt64(&c.currSize, e.Size)
	}
	return nil
}

// Stats returns cache statistics
func (c *FrameCache) Stats() Stats {
	return Stats{
		Entries:   c.index.Len(),
		SizeBytes: atomic.LoadInt64(&c.currSize),
		MaxBytes:  c.maxSize,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Path:      c.baseDir,
	}
}

// Clear removes all cached frames
func (c *FrameCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index.Purge()
	atomic.StoreInt64(&c.currSize, 0)
	return nil
}

// Path returns the base directory of the cache
func (c *FrameCache) Path() string {
	return c.baseDir
}
