package extraction

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hetulpatel/surveillance/internal/config"
)

// OpenCache builds the configured cache backend. File caches are scoped to
// venue and date so a day's results live side by side.
func OpenCache(cfg config.Config, venue, date string) (Cache, error) {
	switch cfg.Extraction.CacheBackend {
	case "memory":
		return NewMemoryCache(), nil
	case "redis":
		ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
		return NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ttl, cfg.Redis.Prefix)
	case "file", "":
		dir := filepath.Join(cfg.Extraction.CacheDir, "venue="+venue, "date="+date)
		return NewFileCache(dir)
	default:
		return nil, fmt.Errorf("extraction: unknown cache backend %q", cfg.Extraction.CacheBackend)
	}
}
