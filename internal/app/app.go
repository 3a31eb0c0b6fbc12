// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the mapbuilder server and the parcel
// assessment workflow shared by the HTTP API and the CLI.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corey/mapbuilder/internal/adapters/ahocorasick"
	"github.com/corey/mapbuilder/internal/adapters/bbolt"
	"github.com/corey/mapbuilder/internal/adapters/fixtures"
	fsw "github.com/corey/mapbuilder/internal/adapters/fsnotify"
	"github.com/corey/mapbuilder/internal/adapters/lightbox"
	"github.com/corey/mapbuilder/internal/adapters/web"
	"github.com/corey/mapbuilder/internal/config"
	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/domain/zoning"
	"github.com/corey/mapbuilder/internal/logging"
	"github.com/corey/mapbuilder/internal/ports"
)

// Provider names reported by /api/health and the CLI.
const (
	ProviderLightBox = "lightbox"
	ProviderFixtures = "fixtures"
	ProviderCustom   = "custom"
)

// App is the top-level container wiring all components together.
type App struct {
	ProjectRoot string
	Paths       *Paths
	Settings    *config.Config

	Parser     *zoning.Parser
	Calculator *buildable.Calculator
	Matcher    *ahocorasick.Matcher

	Store     *bbolt.Store       // nil when caching is off
	Fixtures  *fixtures.Provider // nil unless offline
	Watcher   *fsw.Watcher       // nil unless offline
	WebServer *web.Server

	provider     ports.ParcelProvider
	cached       *cachedProvider // nil when caching is off
	providerName string
	log          logging.Logger
	started      time.Time
}

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	Settings    *config.Config       // default: config.Default()
	Logger      logging.Logger       // default: discard
	Provider    ports.ParcelProvider // optional: replaces the configured provider
}

// NewParser builds the zoning parser for settings: the default tie-break
// phrases plus any configured extras, matched by an Aho-Corasick automaton.
func NewParser(settings *config.Config) (*zoning.Parser, *ahocorasick.Matcher, error) {
	vocab, err := settings.Vocabulary()
	if err != nil {
		return nil, nil, err
	}
	matcher, err := ahocorasick.New(nil)
	if err != nil {
		return nil, nil, err
	}
	parser, err := zoning.NewParser(vocab, matcher)
	if err != nil {
		return nil, nil, err
	}
	return parser, matcher, nil
}

// New creates an App with all dependencies wired. Does not start services.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	settings := cfg.Settings

	parser, matcher, err := NewParser(settings)
	if err != nil {
		return nil, fmt.Errorf("zoning vocabulary: %w", err)
	}

	a := &App{
		ProjectRoot: cfg.ProjectRoot,
		Paths:       NewPaths(cfg.ProjectRoot),
		Settings:    settings,
		Parser:      parser,
		Calculator:  buildable.NewCalculator(parser),
		Matcher:     matcher,
		log:         cfg.Logger,
	}

	switch {
	case cfg.Provider != nil:
		a.provider, a.providerName = cfg.Provider, ProviderCustom

	case settings.Offline():
		dir := Resolve(cfg.ProjectRoot, settings.FixturesDir)
		fx, err := fixtures.New(dir)
		if err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		watcher, err := fsw.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		a.Fixtures, a.Watcher = fx, watcher
		a.provider, a.providerName = fx, ProviderFixtures

	default:
		client, err := lightbox.New(settings.LightBox.BaseURL, settings.LightBox.APIKey,
			lightbox.WithTimeout(settings.LightBox.Timeout))
		if err != nil {
			return nil, fmt.Errorf("lightbox client: %w", err)
		}
		a.provider, a.providerName = client, ProviderLightBox

		// Only the paid upstream is worth caching.
		if settings.CacheEnabled() {
			dbPath := Resolve(cfg.ProjectRoot, settings.Cache.Path)
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return nil, fmt.Errorf("cache dir: %w", err)
			}
			store, err := bbolt.NewStore(dbPath)
			if err != nil {
				return nil, fmt.Errorf("open cache: %w", err)
			}
			a.Store = store
			a.cached = newCachedProvider(client, store, settings.Cache.TTL, a.log)
			a.provider = a.cached
		}
	}

	a.WebServer = web.NewServer(a, web.Options{
		AllowedOrigin: settings.Server.AllowedOrigin,
		PortFile:      a.Paths.PortFile,
		Logger:        a.log.With("component", "web"),
	})
	return a, nil
}

// Provider returns the parcel provider, behind the cache when enabled.
func (a *App) Provider() ports.ParcelProvider { return a.provider }

// ProviderName identifies the active provider.
func (a *App) ProviderName() string {
	if a.cached != nil {
		return a.providerName + "+cache"
	}
	return a.providerName
}

// CacheStats returns cache hit and miss counts since start.
func (a *App) CacheStats() (hits, misses int64) {
	if a.cached == nil {
		return 0, 0
	}
	return a.cached.hits.Load(), a.cached.misses.Load()
}

// Estimate runs the calculator with the configured vocabulary.
func (a *App) Estimate(in *buildable.ParcelInput) (*buildable.Report, error) {
	return a.Calculator.Compute(in)
}

// Start begins serving the HTTP API and, offline, watching fixtures.
func (a *App) Start() error {
	a.started = time.Now()
	if err := a.Paths.EnsureDirs(); err != nil {
		return fmt.Errorf("create %s: %w", a.Paths.Root, err)
	}
	if err := a.WebServer.Start(a.Settings.Server.Host, a.Settings.Server.Port); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	// Fixture watching is a convenience; a failure only disables live reload.
	if a.Watcher != nil {
		if err := a.Watcher.Watch(a.Fixtures.Dir(), a.onFixtureChanged); err != nil {
			a.log.Warn("fixture watcher unavailable", "error", err)
		}
	}
	a.log.Info("server started", "url", a.WebServer.URL(), "provider", a.ProviderName())
	return nil
}

// Stop shuts down all services and closes the cache. Safe to call on an App
// that was never started.
func (a *App) Stop() error {
	a.WebServer.Stop()
	var errs []error
	if a.Watcher != nil {
		errs = append(errs, a.Watcher.Stop())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
		a.Store = nil
	}
	return errors.Join(errs...)
}

// Uptime reports how long the server has been running.
func (a *App) Uptime() time.Duration {
	if a.started.IsZero() {
		return 0
	}
	return time.Since(a.started)
}
