package tts

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Cache wraps a Provider and keeps synthesized clips on disk under
// root/<provider>/, keyed by language, rate, text and the provider's own
// CacheKey when it has one.
type Cache struct {
	provider Provider
	root     string
	dir      string

	mu     sync.Mutex
	hits   int64
	misses int64
}

// CacheStats describes the on-disk cache.
type CacheStats struct {
	Directory string
	Files     int64
	SizeBytes int64
	Hits      int64
	Misses    int64
}

// SizeMB returns the cache size in megabytes.
func (s CacheStats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}

// NewCache creates the provider's cache directory under root and wraps provider.
func NewCache(provider Provider, root string) (*Cache, error) {
	dir := filepath.Join(root, provider.Name())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Cache{provider: provider, root: root, dir: dir}, nil
}

func (c *Cache) Name() string {
	return c.provider.Name()
}

// Unwrap returns the wrapped provider, for its optional interfaces.
func (c *Cache) Unwrap() Provider {
	return c.provider
}

func (c *Cache) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	key := c.key(req)

	if audio, ok := c.lookup(key); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		logrus.WithField("key", key).Debug("Using cached clip")
		return audio, nil
	}

	audio, err := c.provider.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	path := filepath.Join(c.dir, key+audio.Encoding.Ext())
	if err := writeClip(path, audio.Data); err != nil {
		// the clip is still good, only caching failed
		logrus.WithError(err).WithField("path", path).Warn("Failed to cache clip")
	}
	return audio, nil
}

// writeClip writes through a temp file so an interrupted write never leaves
// a truncated clip under the final name.
func writeClip(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".clip-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Verify delegates to the wrapped provider when it supports verification.
func (c *Cache) Verify(ctx context.Context) error {
	if v, ok := c.provider.(Verifier); ok {
		return v.Verify(ctx)
	}
	return nil
}

func (c *Cache) lookup(key string) (*Audio, bool) {
	for _, enc := range []Encoding{EncodingMP3, EncodingWAV, EncodingText} {
		data, err := os.ReadFile(filepath.Join(c.dir, key+enc.Ext()))
		if err == nil && len(data) > 0 {
			return &Audio{Data: data, Encoding: enc}, true
		}
	}
	return nil, false
}

func (c *Cache) key(req Request) string {
	parts := []string{req.Language, string(req.Rate), req.Text}
	if k, ok := c.provider.(CacheKeyer); ok {
		parts = append(parts, k.CacheKey())
	}
	return md5Sum(strings.Join(parts, "|"))
}

// Stats walks the whole cache root, covering every provider.
func (c *Cache) Stats() (CacheStats, error) {
	stats, err := InspectCache(c.root)

	c.mu.Lock()
	stats.Hits, stats.Misses = c.hits, c.misses
	c.mu.Unlock()

	return stats, err
}

// InspectCache reports the size of a cache root without a live provider.
func InspectCache(root string) (CacheStats, error) {
	stats := CacheStats{Directory: root}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // Continue walking despite errors
		}
		stats.Files++
		stats.SizeBytes += info.Size()
		return nil
	})
	return stats, err
}

// ClearCache removes a cache root and everything in it.
func ClearCache(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}
