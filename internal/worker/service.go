// Package worker provides the HTTP worker service for patternmine.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/transitops/patternmine/internal/config"
	"github.com/transitops/patternmine/internal/db"
	gormstore "github.com/transitops/patternmine/internal/db/gorm"
	redisstore "github.com/transitops/patternmine/internal/db/redis"
	sqlitestore "github.com/transitops/patternmine/internal/db/sqlite"
	"github.com/transitops/patternmine/internal/embedding"
	"github.com/transitops/patternmine/internal/engine"
	"github.com/transitops/patternmine/internal/translation"
	"github.com/transitops/patternmine/internal/watcher"
)

// DefaultHTTPTimeout is the default timeout for HTTP request handling.
const DefaultHTTPTimeout = 120 * time.Second

// Service is the worker service: it owns the store, the pattern-mining
// engine and the HTTP server.
type Service struct {
	version string

	// cfgMu guards cfg: the settings watcher swaps it from its own
	// goroutine while request handlers read it.
	cfgMu sync.RWMutex
	cfg   *config.Config

	store  db.Store
	engine *engine.Engine

	router *chi.Mux
	server *http.Server

	settingsWatcher *watcher.Watcher
	startTime       time.Time
}

// NewService creates a worker service with the configured storage backend.
func NewService(version string) (*Service, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	cfg := config.Get()

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	s := &Service{
		version: version,
		cfg:     cfg,
		store:   store,
		engine: engine.New(
			embedding.NewProvider(cfg.EmbeddingModel),
			translation.NewProvider(),
		),
		startTime: time.Now(),
	}

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.routes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.WorkerPort),
		Handler:      s.router,
		ReadTimeout:  DefaultHTTPTimeout,
		WriteTimeout: DefaultHTTPTimeout,
	}

	// Pick up changed clustering defaults without a restart.
	if w, err := watcher.New(config.SettingsPath(), s.reloadSettings); err == nil {
		s.settingsWatcher = w
	} else {
		log.Warn().Err(err).Msg("Settings watcher unavailable")
	}

	return s, nil
}

func openStore(cfg *config.Config) (db.Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return sqlitestore.NewStore(sqlitestore.Config{Path: cfg.DBPath, MaxConns: cfg.MaxConns})
	case "postgres":
		return gormstore.NewStore(cfg.PostgresDSN)
	case "redis":
		return redisstore.NewStore(cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func (s *Service) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/analyze", s.handleAnalyze)
	s.router.Get("/api/patterns", s.handleGetPatterns)
	s.router.Get("/api/models", s.handleGetModels)
}

// Start begins serving HTTP requests.
func (s *Service) Start() error {
	if s.settingsWatcher != nil {
		if err := s.settingsWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start settings watcher")
		}
	}

	go func() {
		log.Info().Str("addr", s.server.Addr).Str("backend", s.config().Backend).Msg("Worker listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the service.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.settingsWatcher != nil {
		s.settingsWatcher.Stop()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// config returns the current configuration snapshot.
func (s *Service) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Service) reloadSettings() {
	cfg, err := config.Reload()
	if err != nil {
		log.Warn().Err(err).Msg("Settings reload failed, keeping previous configuration")
		return
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	log.Info().Msg("Settings reloaded")
}
