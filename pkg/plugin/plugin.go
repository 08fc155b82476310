// Package plugin binds the keyed cache and the selector to the host's
// load, register and unload events.
package plugin

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-inclusionfilter/pkg/cache"
	"github.com/illmade-knight/go-inclusionfilter/pkg/selector"
	"github.com/rs/zerolog"
)

// SeedKey is created in the cache on every load.
const SeedKey = "cache_key"

// Recorder receives both cache and selector events.
type Recorder interface {
	cache.Recorder
	selector.Recorder
}

// Config holds configuration for a Plugin.
type Config struct {
	Cache    cache.Config
	Selector selector.Config
}

// Plugin owns the one cache of a loaded instance and the selector that uses it.
type Plugin struct {
	cache    *cache.KeyedCache
	selector *selector.Selector
	logger   zerolog.Logger
}

// New builds a Plugin. The fetcher and recorder may be nil.
func New(cfg Config, fetcher cache.Fetcher, recorder Recorder, logger zerolog.Logger) (*Plugin, error) {
	cacheCfg := cfg.Cache
	cacheCfg.SeedKeys = append([]string{SeedKey}, cfg.Cache.SeedKeys...)

	var cacheRec cache.Recorder
	var selRec selector.Recorder
	if recorder != nil {
		cacheRec, selRec = recorder, recorder
	}

	c := cache.NewKeyedCache(&cacheCfg, fetcher, cacheRec, logger)
	sel, err := selector.NewSelector(cfg.Selector, c, selRec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create selector: %w", err)
	}
	return &Plugin{
		cache:    c,
		selector: sel,
		logger:   logger.With().Str("component", "Plugin").Logger(),
	}, nil
}

// OnLoad initializes the cache.
func (p *Plugin) OnLoad(ctx context.Context) error {
	if err := p.cache.Init(ctx); err != nil {
		return fmt.Errorf("plugin load: %w", err)
	}
	p.logger.Info().Msg("Plugin loaded.")
	return nil
}

// OnRegister exposes the selector under selector.Name.
func (p *Plugin) OnRegister(reg Registry) error {
	if err := reg.Register(selector.Name, p.selector.Func()); err != nil {
		return fmt.Errorf("plugin register: %w", err)
	}
	p.logger.Info().Str("name", selector.Name).Msg("Selector registered.")
	return nil
}

// OnUnload tears the cache down. Registered functions keep working but fail
// with ErrNotInitialized until OnLoad runs again.
func (p *Plugin) OnUnload() error {
	if err := p.cache.Teardown(); err != nil {
		return fmt.Errorf("plugin unload: %w", err)
	}
	p.logger.Info().Msg("Plugin unloaded.")
	return nil
}

// Cache returns the plugin's cache.
func (p *Plugin) Cache() *cache.KeyedCache {
	return p.cache
}

// Close unloads the plugin and releases the cache's fetcher.
func (p *Plugin) Close() error {
	return p.cache.Close()
}
