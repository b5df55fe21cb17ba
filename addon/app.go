// Package addon runs a plugin: it loads configuration, wires logging,
// metrics, tracing, identity lookup, the message catalog and preset cache,
// and serves the plugin's endpoints over CGI or HTTP.
package addon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/dispatch"
	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/internal/i18n"
	"github.com/pulivilizator/billmgr-addon/internal/identity"
	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/internal/transport"
	"github.com/pulivilizator/billmgr-addon/model"
	"github.com/pulivilizator/billmgr-addon/preset"
	"github.com/pulivilizator/billmgr-addon/processing"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X github.com/pulivilizator/billmgr-addon/addon.Version=1.0.0"
var (
	Version = "dev"
	Commit  = "unknown"
)

// Runtime is what a plugin gets to build its endpoints with.
type Runtime struct {
	Name     string
	Settings map[string]string
	Logger   *zap.Logger
	Catalog  model.Catalog

	// Presets caches option lists of async sources; wrap sources with
	// preset.Cached(rt.Presets, rt.PresetTTL, ...).
	Presets   preset.Store
	PresetTTL time.Duration

	// Processing receives the commands served by the processing subcommand.
	Processing *processing.Module
}

// Endpoints is a plugin's endpoint set.
type Endpoints struct {
	Panel  []dispatch.Endpoint
	Direct []*dispatch.DirectEndpoint
}

// Setup builds a plugin's endpoints. A nil Setup serves no endpoints, so
// every panel event echoes its payload.
type Setup func(rt *Runtime) (Endpoints, error)

// app is a fully wired plugin.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	router     *dispatch.Router
	processing *processing.Module
	readiness  observability.ReadinessChecks

	closers         []func() error
	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, setup Setup) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	observability.Version = Version
	observability.Commit = Commit

	a.shutdownTracing, err = observability.InitTracing(ctx, cfg.Observability.Tracing, cfg.Plugin.Name, Version)
	if err != nil {
		return nil, err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = observability.InitMetrics(a.registry)

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithRecorder(a.metrics),
		dispatch.WithSettings(cfg.Settings),
		dispatch.WithDefaultLocale(cfg.I18n.DefaultLocale),
		dispatch.WithPresetTimeout(cfg.Presets.Timeout),
	}

	lookup, err := a.identityLookup()
	if err != nil {
		return nil, err
	}
	if lookup != nil {
		opts = append(opts, dispatch.WithIdentityLookup(lookup))
	}

	catalog, err := i18n.Load(cfg.Paths.Locales, cfg.I18n.DefaultLocale)
	if err != nil {
		return nil, err
	}
	opts = append(opts, dispatch.WithCatalog(catalog))

	if page := cfg.Plugin.LandingPage; page != "" {
		opts = append(opts, dispatch.WithLanding(func(context.Context) ([]byte, error) {
			return os.ReadFile(page)
		}))
	}

	store := a.presetStore()
	a.processing = processing.New(cfg.Plugin.Name,
		processing.WithLogger(logger),
		processing.WithRecorder(a.metrics),
	)

	var eps Endpoints
	if setup != nil {
		eps, err = setup(&Runtime{
			Name:       cfg.Plugin.Name,
			Settings:   cfg.Settings,
			Logger:     logger,
			Catalog:    catalog,
			Presets:    store,
			PresetTTL:  cfg.Cache.PresetTTL,
			Processing: a.processing,
		})
		if err != nil {
			return nil, fmt.Errorf("addon: setup: %w", err)
		}
	}

	a.router, err = dispatch.NewRouter(eps.Panel, eps.Direct, opts...)
	if err != nil {
		return nil, err
	}
	a.readiness.RouterReady = func() bool { return a.router != nil }

	panel, direct := a.router.Endpoints()
	logger.Debug("plugin wired",
		zap.String("plugin", cfg.Plugin.Name),
		zap.Int("panel_endpoints", panel),
		zap.Int("direct_endpoints", direct),
		zap.Int("processing_commands", a.processing.Commands()),
		zap.Strings("locales", catalog.Locales()),
	)
	return a, nil
}

// identityLookup opens the panel database when one is configured.
func (a *app) identityLookup() (model.IdentityLookup, error) {
	if !a.cfg.Database.Enabled() {
		a.logger.Debug("database not configured, identity lookup disabled")
		return nil, nil
	}
	db, err := identity.Open(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	store := identity.NewSQLStore(db)
	a.readiness.Database = store
	if ttl := a.cfg.Database.SessionCacheTTL; ttl > 0 {
		return identity.NewCached(store, ttl, a.metrics), nil
	}
	return store, nil
}

func (a *app) presetStore() preset.Store {
	if a.cfg.Cache.Backend != "redis" {
		return preset.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr: a.cfg.Cache.RedisAddr,
		DB:   a.cfg.Cache.RedisDB,
	})
	a.closers = append(a.closers, client.Close)
	a.readiness.Cache = observability.HealthCheckFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return preset.NewRedisStore(client)
}

// handler returns the service-mode HTTP handler.
func (a *app) handler() http.Handler {
	return transport.NewRouter(transport.Dependencies{
		Config:     a.cfg,
		Dispatcher: a.router,
		Logger:     a.logger,
		Metrics:    a.metrics,
		Gatherer:   a.registry,
		Readiness:  a.readiness,
	})
}

// close releases stores and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
		a.shutdownTracing = nil
	}
	return errors.Join(errs...)
}
