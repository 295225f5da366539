// Package cache implements the per-server fingerprint cache: a flat YAML
// file mapping entity name to the content digest of the XML last pushed to
// that server. It exists so unchanged definitions are never re-uploaded.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Directory under the user cache root holding all cache files.
const appCacheDir = "jenkins-jobs"

// filePrefix keeps cache files recognizable next to anything else that may
// land in the cache directory.
const filePrefix = "cache-host-jobs-"

// unsafeChars matches every character that may not appear in a cache
// filename derived from a server URL.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9~-]`)

// Cache is one server's name -> digest mapping. An empty-string digest means
// "deleted/invalidated": the name is known but must be treated as changed.
// A nil *Cache is safe to call Save on (no-op), which tolerates teardown
// paths reached before initialization completed.
type Cache struct {
	path   string
	data   map[string]string
	logger *slog.Logger
}

// Dir returns the cache directory, creating it if absent.
// XDG_CACHE_HOME overrides the ~/.cache default. An unresolvable home
// directory is fatal: without it the cache cannot be located at all.
func Dir() (string, error) {
	root := os.Getenv("XDG_CACHE_HOME")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}

		root = filepath.Join(home, ".cache")
	}

	dir := filepath.Join(root, appCacheDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	return dir, nil
}

// sanitize maps a server URL to a filename-safe form. Distinct servers must
// never share a cache file, so every unsafe character is replaced rather
// than stripped.
func sanitize(serverURL string) string {
	return unsafeChars.ReplaceAllString(serverURL, "_")
}

// Open loads (or initializes) the cache for one server identity.
// A missing file, a flush request, or an unparseable file all yield an empty
// cache; only a failure to locate or create the cache directory is an error.
func Open(serverURL string, flush bool, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		path:   filepath.Join(dir, filePrefix+sanitize(serverURL)+".yml"),
		data:   make(map[string]string),
		logger: logger,
	}

	if flush {
		logger.Debug("cache flush requested, starting empty", "path", c.path)
		return c, nil
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cache file unreadable, starting empty", "path", c.path, "error", err)
		}

		return c, nil
	}

	if err := yaml.Unmarshal(raw, &c.data); err != nil {
		logger.Warn("cache file corrupt, starting empty", "path", c.path, "error", err)
		c.data = make(map[string]string)

		return c, nil
	}

	if c.data == nil {
		c.data = make(map[string]string)
	}

	logger.Debug("using cache", "path", c.path, "entries", len(c.data))

	return c, nil
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Set records the digest last pushed for name. An empty digest invalidates
// the record without forgetting the name.
func (c *Cache) Set(name, dgst string) {
	c.data[name] = dgst
}

// IsCached reports whether any record exists for name, including an
// invalidated (empty) one.
func (c *Cache) IsCached(name string) bool {
	_, ok := c.data[name]
	return ok
}

// HasChanged reports whether name must be re-uploaded: true when no record
// exists or the stored digest differs from dgst. First-ever sight of a name
// is always a change, so first contact always uploads.
func (c *Cache) HasChanged(name, dgst string) bool {
	stored, ok := c.data[name]
	return !ok || stored != dgst
}

// Len returns the number of records.
func (c *Cache) Len() int {
	return len(c.data)
}

// Save writes the mapping back to the cache file. Failures are logged, never
// returned: Save runs on teardown paths where an error has nowhere to go and
// a lost cache only costs a redundant upload on the next run. Safe to call
// on a nil or never-initialized Cache.
func (c *Cache) Save() {
	if c == nil || c.data == nil {
		return
	}

	raw, err := yaml.Marshal(c.data)
	if err != nil {
		c.logger.Error("failed to serialize cache", "path", c.path, "error", err)
		return
	}

	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		c.logger.Error("failed to write cache file", "path", c.path, "error", err)
		return
	}

	c.logger.Debug("cache saved", "path", c.path, "entries", len(c.data))
}
