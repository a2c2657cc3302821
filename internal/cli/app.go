// Package cli wires configuration into the running pieces of leadflow:
// stores, flow loader, actions, metrics and the session manager.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/leadflow/internal/config"
	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/pkg/actions"
	"github.com/aretw0/leadflow/pkg/adapters/file"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/adapters/process"
	"github.com/aretw0/leadflow/pkg/adapters/redis"
	"github.com/aretw0/leadflow/pkg/adapters/sqlstore"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/genai"
	"github.com/aretw0/leadflow/pkg/observability"
	"github.com/aretw0/leadflow/pkg/persistence/middleware"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// KnownVariables are set by callers rather than by flow steps.
var KnownVariables = []string{actions.VarLeadID, actions.VarVertical}

// App holds the wired components.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   ports.ConversationStore
	Loader  ports.FlowLoader
	Actions *registry.Registry
	Manager *session.Manager
	Metrics *observability.Metrics

	// Gatherer exposes Metrics. It is a private registry, not the global one.
	Gatherer *prometheus.Registry

	closers []func() error
}

// Option customizes Bootstrap.
type Option func(*options)

type options struct {
	logger *slog.Logger
	loader ports.FlowLoader
	gen    ports.Generator
	leads  ports.LeadUpdater
}

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLoader replaces the directory loader at Config.FlowsDir.
func WithLoader(l ports.FlowLoader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithGenerator replaces the genai service built from the config.
func WithGenerator(g ports.Generator) Option {
	return func(o *options) {
		o.gen = g
	}
}

// WithLeads replaces the lead store paired with the configured backend.
func WithLeads(l ports.LeadUpdater) Option {
	return func(o *options) {
		o.leads = l
	}
}

// Bootstrap builds every component described by cfg.
// Close must be called to release store connections.
func Bootstrap(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Logger: o.logger}
	if app.Logger == nil {
		app.Logger = logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}

	backend, err := openBackend(cfg.Store, app.Logger)
	if err != nil {
		return nil, err
	}
	if backend.close != nil {
		app.closers = append(app.closers, backend.close)
	}
	app.Store, err = protectStore(cfg.Store, backend.store)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Loader = o.loader
	if app.Loader == nil {
		app.Loader = file.NewLoader(cfg.FlowsDir)
	}

	gen := o.gen
	if gen == nil {
		gen, err = newGenerator(cfg, app.Logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	leads := o.leads
	if leads == nil {
		leads = backend.leads
	}

	app.Actions = registry.NewRegistry()
	actions.RegisterDefaults(app.Actions, actions.Deps{
		Generator:       gen,
		Leads:           leads,
		DefaultVertical: cfg.GenAI.DefaultVertical,
		MaxChars:        cfg.GenAI.MaxChars,
	})
	if err := registerProcessActions(app.Actions, cfg.ActionsFile); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Gatherer = prometheus.NewRegistry()
	app.Metrics = observability.NewMetrics(app.Gatherer)
	hooks := observability.Combine(app.Metrics.Hooks(), observability.LoggingHooks(app.Logger))

	managerOpts := []session.Option{
		session.WithLogger(app.Logger),
		session.WithEngineFactory(app.engineFactory(hooks)),
	}
	if cfg.DefaultFlow != "" {
		managerOpts = append(managerOpts, session.WithDefaultFlow(cfg.DefaultFlow))
	}
	if backend.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(backend.locker))
	}
	app.Manager = session.NewManager(app.Store, app.Loader, managerOpts...)

	app.Logger.Debug("leadflow wired",
		"store", cfg.Store.Backend,
		"flows", cfg.FlowsDir,
		"actions", app.Actions.Names(),
	)
	return app, nil
}

// EngineOptions are the runtime options derived from the config.
func (a *App) EngineOptions(hooks domain.LifecycleHooks) []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(a.Logger),
		runtime.WithActions(a.Actions),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithActionTimeout(a.Config.ActionTimeout),
		runtime.WithKnownVariables(KnownVariables...),
	}
	if a.Config.InvalidChoiceMessage != "" {
		opts = append(opts, runtime.WithInvalidChoiceMessage(a.Config.InvalidChoiceMessage))
	}
	return opts
}

func (a *App) engineFactory(hooks domain.LifecycleHooks) session.EngineFactory {
	return func(flow *domain.FlowDefinition) (ports.TurnEngine, error) {
		return runtime.NewEngine(flow, a.EngineOptions(hooks)...)
	}
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

type backend struct {
	store  ports.ConversationStore
	leads  ports.LeadUpdater
	locker ports.DistributedLocker
	close  func() error
}

func openBackend(cfg config.StoreConfig, logger *slog.Logger) (backend, error) {
	switch cfg.Backend {
	case config.StoreMemory, "":
		return backend{store: memory.NewStore(), leads: memory.NewLeadStore()}, nil

	case config.StoreFile:
		return backend{store: file.New(cfg.Dir), leads: memory.NewLeadStore()}, nil

	case config.StoreRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithTTL(cfg.RedisTTL),
			redis.WithPrefix(cfg.Prefix),
		)
		return backend{
			store:  store,
			leads:  redis.NewLeadStore(store.Client(), cfg.Prefix),
			locker: redis.NewLocker(store.Client(), cfg.Prefix),
			close:  store.Close,
		}, nil

	case config.StoreSQLite, config.StorePostgres:
		dialect := sqlstore.SQLite
		if cfg.Backend == config.StorePostgres {
			dialect = sqlstore.Postgres
		}
		store, err := sqlstore.Open(
			sqlstore.WithDSN(cfg.DSN),
			sqlstore.WithDialect(dialect),
			sqlstore.WithLogger(logger),
		)
		if err != nil {
			return backend{}, fmt.Errorf("open %s store: %w", cfg.Backend, err)
		}
		return backend{store: store, leads: store, close: store.Close}, nil
	}
	return backend{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// protectStore masks PII first so the encrypted payload never holds raw values.
func protectStore(cfg config.StoreConfig, store ports.ConversationStore) (ports.ConversationStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		encCfg := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i, err)
			}
			encCfg.FallbackKeys = append(encCfg.FallbackKeys, key)
		}
		enc, err := middleware.NewEncryptionMiddleware(encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

// registerProcessActions overrides built-in actions with the ones declared in path.
func registerProcessActions(reg *registry.Registry, path string) error {
	if path == "" {
		return nil
	}
	defs, err := process.LoadActions(path)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}
	process.NewRunner(process.WithActions(defs), process.WithBaseDir(filepath.Dir(path))).Register(reg)
	return nil
}

// newGenerator always returns a service: without providers it answers with
// the per-vertical fallback texts.
func newGenerator(cfg config.Config, logger *slog.Logger) (ports.Generator, error) {
	opts := []genai.Option{
		genai.WithBusinessName(cfg.GenAI.BusinessName),
		genai.WithLogger(logger),
	}
	if cfg.OpenAI.APIKey != "" {
		p, err := genai.NewOpenAIProvider(cfg.OpenAI.APIKey,
			genai.WithModel(cfg.OpenAI.Model),
			genai.WithTemperature(cfg.OpenAI.Temperature),
			genai.WithMaxTokens(int64(cfg.OpenAI.MaxTokens)),
		)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		opts = append(opts, genai.WithProvider(p))
	} else {
		logger.Info("no OpenAI key configured; AI replies use fallback texts")
	}
	return genai.NewService(opts...), nil
}
