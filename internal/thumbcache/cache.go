// Package thumbcache stores resized images on disk so grid views do not
// decode and resample full-size images on every visit.
package thumbcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

const (
	cacheDirName  = "termimage/thumbnails"
	cacheMaxAge   = 30 * 24 * time.Hour // 30 days
	pruneInterval = 24 * time.Hour
)

// Cache is an on-disk PNG cache of resized images. A nil *Cache is valid
// and caches nothing.
type Cache struct {
	dir string

	mu         sync.Mutex
	lastPruned time.Time
}

// New creates the cache under baseDir, or under the XDG cache home when
// baseDir is empty.
func New(baseDir string) (*Cache, error) {
	dir := filepath.Join(xdg.CacheHome, cacheDirName)
	if baseDir != "" {
		dir = baseDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail cache: %w", err)
	}

	c := &Cache{dir: dir}

	// Prune old entries in background
	go c.pruneOldEntries()

	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// cacheKey identifies a source file revision resampled with filter at a
// pixel size.
func cacheKey(path string, modTime time.Time, filter string, width, height int) string {
	data := fmt.Sprintf("%s:%d:%s:%d:%d", path, modTime.UnixNano(), filter, width, height)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func (c *Cache) entryPath(path string, modTime time.Time, filter string, width, height int) string {
	return filepath.Join(c.dir, cacheKey(path, modTime, filter, width, height)+".png")
}

// Get returns the cached resize of path with filter at width x height,
// or nil.
func (c *Cache) Get(path string, modTime time.Time, filter string, width, height int) *image.NRGBA {
	if c == nil || path == "" {
		return nil
	}

	entry := c.entryPath(path, modTime, filter, width, height)
	data, err := os.ReadFile(entry)
	if err != nil {
		return nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		_ = os.Remove(entry) //nolint:errcheck // corrupt entry
		return nil
	}

	// Touch the file to update mtime (keeps frequently used entries fresh)
	now := time.Now()
	_ = os.Chtimes(entry, now, now) //nolint:errcheck // best-effort

	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// Put stores img as the resize of path with filter at its own size.
func (c *Cache) Put(path string, modTime time.Time, filter string, img *image.NRGBA) error {
	if c == nil || path == "" || img == nil || img.Bounds().Empty() {
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	b := img.Bounds()
	entry := c.entryPath(path, modTime, filter, b.Dx(), b.Dy())

	// Write through a temp file so concurrent readers never see a
	// partial PNG.
	tmp, err := os.CreateTemp(c.dir, "tmp-*.png")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), entry)
}

// pruneOldEntries removes cache entries older than cacheMaxAge.
func (c *Cache) pruneOldEntries() {
	if c == nil {
		return
	}

	// Don't prune too frequently
	c.mu.Lock()
	if time.Since(c.lastPruned) < pruneInterval {
		c.mu.Unlock()
		return
	}
	c.lastPruned = time.Now()
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-cacheMaxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(c.dir, entry.Name())) //nolint:errcheck // best-effort cleanup
		}
	}
}
