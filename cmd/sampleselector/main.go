// Command sampleselector loads the sample selector plugin, serves health and
// metrics endpoints and drives a round of demo calls through the dispatcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/illmade-knight/go-inclusionfilter/pkg/cache"
	"github.com/illmade-knight/go-inclusionfilter/pkg/host"
	"github.com/illmade-knight/go-inclusionfilter/pkg/metrics"
	"github.com/illmade-knight/go-inclusionfilter/pkg/microservice"
	"github.com/illmade-knight/go-inclusionfilter/pkg/plugin"
	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/illmade-knight/go-inclusionfilter/pkg/selector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var demoTags = []string{"a", "x", "b", "y"}

func main() {
	cfg := LoadConfigFromEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Sample selector exited with error.")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "selector")

	var fetcher cache.Fetcher
	if cfg.RedisAddr != "" {
		src, err := cache.NewRedisSource(ctx, &cache.RedisConfig{
			Addr:      cfg.RedisAddr,
			KeyPrefix: cfg.ServiceName + ":",
			CacheTTL:  cfg.RedisTTL,
		}, logger, nil)
		if err != nil {
			return err
		}
		fetcher = src
	}

	p, err := plugin.New(plugin.Config{
		Cache:    cache.Config{MaxEntries: cfg.CacheMaxEntries},
		Selector: selector.Config{Delay: delayFor(cfg)},
	}, fetcher, m, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close plugin.")
		}
	}()
	if err := p.OnLoad(ctx); err != nil {
		return err
	}
	registry := plugin.NewMemoryRegistry()
	if err := p.OnRegister(registry); err != nil {
		return err
	}

	d, err := host.NewDispatcher(host.Config{NumWorkers: cfg.NumWorkers, QueueSize: cfg.NumWorkers}, registry, logger)
	if err != nil {
		return err
	}
	// Stop, not the signal, ends the workers so queued calls are drained.
	if err := d.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	server := microservice.NewBaseServer(logger, cfg.HTTPPort)
	server.Handle("/metrics", m.Handler())
	if err := server.Start(); err != nil {
		return err
	}
	server.SetReady(true)

	if err := runDemo(ctx, d, cfg.BoltPath, logger); err != nil {
		logger.Warn().Err(err).Msg("Demo calls did not all succeed.")
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	server.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Dispatcher did not stop cleanly.")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server did not stop cleanly.")
	}
	return p.OnUnload()
}

// delayFor picks the per-call delay: a shared rate limit when configured,
// otherwise a fixed sleep.
func delayFor(cfg *Config) selector.Delay {
	switch {
	case cfg.RatePerSecond > 0:
		return selector.NewRateLimitDelay(cfg.RatePerSecond, cfg.NumWorkers)
	case cfg.Delay > 0:
		return selector.FixedDelay(cfg.Delay)
	default:
		return selector.NoDelay{}
	}
}

func demoArgs() selector.Args {
	return selector.Args{"tag", selector.Options{{Key: selector.OptionIncludes, Value: "a,b"}}}
}

// runDemo filters one result set per backend concurrently.
func runDemo(ctx context.Context, d *host.Dispatcher, boltPath string, logger zerolog.Logger) error {
	sets, cleanup, err := demoSets(boltPath)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	for name, rs := range sets {
		g.Go(func() error {
			if err := d.Invoke(gctx, selector.Name, demoArgs(), rs); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			logger.Info().Str("backend", name).Int("remaining", rs.Len()).Msg("Demo call completed.")
			return nil
		})
	}
	return g.Wait()
}

// demoSets builds the demo records in memory, in an Arrow record and, when
// boltPath is set, in a bbolt file.
func demoSets(boltPath string) (map[string]resultset.ResultSet, func(), error) {
	sets := make(map[string]resultset.ResultSet)
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	mem := resultset.NewMemory("tag")
	for _, tag := range demoTags {
		if _, err := mem.Add(resultset.Record{"tag": tag}); err != nil {
			return nil, cleanup, err
		}
	}
	sets["memory"] = mem

	schema := arrow.NewSchema([]arrow.Field{{Name: "tag", Type: arrow.BinaryTypes.String}}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	b.Field(0).(*array.StringBuilder).AppendValues(demoTags, nil)
	rec := b.NewRecord()
	b.Release()
	arrowSet := resultset.NewArrow(rec)
	rec.Release()
	closers = append(closers, arrowSet.Release)
	sets["arrow"] = arrowSet

	if boltPath != "" {
		boltSet, err := resultset.OpenBolt(boltPath, resultset.BoltConfig{Columns: []string{"tag"}})
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = boltSet.Close() })
		for _, tag := range demoTags {
			if _, err := boltSet.Add(resultset.Record{"tag": tag}); err != nil {
				cleanup()
				return nil, func() {}, err
			}
		}
		sets["bolt"] = boltSet
	}
	return sets, cleanup, nil
}
