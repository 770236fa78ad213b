package cache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
)

// DiskCache keeps pages as gzip files, one per key. The expiry is stored in
// the gzip header comment so it can be checked before inflating the page.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
	}
}

const expiryLayout = time.RFC3339Nano

// Get returns a stored page. Expired or unreadable entries are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	defer zr.Close()

	expiresAt, err := time.Parse(expiryLayout, zr.Comment)
	if err != nil || time.Now().After(expiresAt) {
		_ = os.Remove(path)
		return nil, false
	}

	data, err := io.ReadAll(zr)
	if err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	return data, true
}

// Set writes value atomically. A zero ttl uses the cache default.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Comment = time.Now().Add(ttl).UTC().Format(expiryLayout)
	if _, err := zw.Write(value); err != nil {
		return eris.Wrap(err, "cache: compress page")
	}
	if err := zw.Close(); err != nil {
		return eris.Wrap(err, "cache: compress page")
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrapf(err, "cache: create dir %s", c.dir)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "cache: write page")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "cache: write page")
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "cache: store page")
	}
	return nil
}

// Delete removes a page. Deleting a missing page is not an error.
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "cache: delete page")
	}
	return nil
}

// Clear removes the cache directory
func (c *DiskCache) Clear() error {
	return eris.Wrap(os.RemoveAll(c.dir), "cache: clear")
}

// path maps a key to a file name that is safe on every platform.
func (c *DiskCache) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(key)
	return filepath.Join(c.dir, name+".gz")
}
