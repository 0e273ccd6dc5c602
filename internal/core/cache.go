// Package core defines the ports of the notification delivery engine and the small
// amount of business logic that sits directly on top of them.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/academic360/notifier/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
// The core defines it and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// TemplateCacheConfig holds configuration for template caching.
type TemplateCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// DefaultTemplateCacheConfig returns a TemplateCacheConfig with sensible defaults.
func DefaultTemplateCacheConfig() TemplateCacheConfig {
	return TemplateCacheConfig{
		TTL: 5 * time.Minute,
	}
}

// TemplateCacheOptions bundles dependencies for NewTemplateCache.
type TemplateCacheOptions struct {
	Cache     CacheRepository
	Templates TemplateRepository
	Config    TemplateCacheConfig
	Logger    *slog.Logger
}

// TemplateCache is a read-through cache in front of the template registry.
// Cache failures are logged and fall through to the repository.
type TemplateCache struct {
	cache     CacheRepository
	templates TemplateRepository
	ttl       time.Duration
	logger    *slog.Logger
}

var _ TemplateRepository = (*TemplateCache)(nil)

// NewTemplateCache creates a new TemplateCache. A nil cache disables caching.
func NewTemplateCache(opts TemplateCacheOptions) (*TemplateCache, error) {
	if opts.Templates == nil {
		return nil, errors.New("TemplateRepository is required")
	}
	ttl := opts.Config.TTL
	if ttl < 0 {
		ttl = DefaultTemplateCacheConfig().TTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateCache{
		cache:     opts.Cache,
		templates: opts.Templates,
		ttl:       ttl,
		logger:    logger.With("component", "template_cache"),
	}, nil
}

// GetByID returns the template, from cache when possible.
func (c *TemplateCache) GetByID(ctx context.Context, id int64) (*model.Template, error) {
	if c.cache == nil {
		return c.templates.GetByID(ctx, id)
	}

	key := templateKey(id)
	if raw, err := c.cache.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "template cache get failed", "template_id", id, "error", err)
	} else if len(raw) > 0 {
		var tmpl model.Template
		if err := json.Unmarshal(raw, &tmpl); err == nil {
			return &tmpl, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached template", "template_id", id)
	}

	tmpl, err := c.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tmpl); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "template cache set failed", "template_id", id, "error", err)
		}
	}
	return tmpl, nil
}

// Invalidate removes a cached template, e.g. after it was deactivated.
func (c *TemplateCache) Invalidate(ctx context.Context, id int64) error {
	if c.cache == nil {
		return nil
	}
	_, err := c.cache.Delete(ctx, templateKey(id))
	return err
}

func templateKey(id int64) string {
	return "notifier:template:" + strconv.FormatInt(id, 10)
}
