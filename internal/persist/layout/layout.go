// Package layout resolves the on-disk paths the persistence layer writes
// to, following the XDG-style user data/config/cache directory split
// instead of a single ad hoc directory.
package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"feedcore/internal/domain"
)

// Dirs is the resolved set of base directories a host environment hands
// to the core.
type Dirs struct {
	Config string
	Data   string
	Cache  string
}

// DefaultDirs resolves Dirs from the environment the way most XDG-style
// desktop hosts do, with an appName-scoped fallback under os.UserHomeDir
// when no XDG variable is set.
func DefaultDirs(appName string) (Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("layout: resolve home dir: %w", err)
	}

	return Dirs{
		Config: envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config"), appName),
		Data:   envOr("XDG_DATA_HOME", filepath.Join(home, ".local", "share"), appName),
		Cache:  envOr("XDG_CACHE_HOME", filepath.Join(home, ".cache"), appName),
	}, nil
}

func envOr(key, fallbackBase, appName string) string {
	if v := os.Getenv(key); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(fallbackBase, appName)
}

// EnsureAll creates every directory Dirs names, and the favicons/plugins
// cache subdirectories beneath Cache, if they do not already exist.
func (d Dirs) EnsureAll() error {
	for _, p := range []string{d.Config, d.Data, d.Cache, d.FaviconDir(), d.PluginCacheDir()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("layout: mkdir %s: %w", p, err)
		}
	}
	return nil
}

// FeedListPath is the OPML feed list, stored under the config directory.
func (d Dirs) FeedListPath() string {
	return filepath.Join(d.Config, "feedlist.opml")
}

// ItemStorePath is the item store database, stored under the data
// directory.
func (d Dirs) ItemStorePath() string {
	return filepath.Join(d.Data, "liferea.db")
}

// FaviconDir is the favicon cache directory.
func (d Dirs) FaviconDir() string {
	return filepath.Join(d.Cache, "favicons")
}

// FaviconPath is the cached favicon file for node.
func (d Dirs) FaviconPath(node domain.NodeID) string {
	return filepath.Join(d.FaviconDir(), string(node)+".png")
}

// PluginCacheDir is the per-node-source cache directory.
func (d Dirs) PluginCacheDir() string {
	return filepath.Join(d.Cache, "plugins")
}

// PluginCachePath is the per-plugin-instance cache file for a source-root
// node.
func (d Dirs) PluginCachePath(sourceRoot domain.NodeID) string {
	return filepath.Join(d.PluginCacheDir(), string(sourceRoot)+".opml")
}
