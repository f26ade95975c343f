// Package app assembles the registry, classifier, sink, and routing engine
// from configuration and applies live configuration changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zen-systems/tierroute/pkg/adapter"
	"github.com/zen-systems/tierroute/pkg/classifier"
	"github.com/zen-systems/tierroute/pkg/config"
	"github.com/zen-systems/tierroute/pkg/router"
	"github.com/zen-systems/tierroute/pkg/store"
	"github.com/zen-systems/tierroute/pkg/store/redis"
	"github.com/zen-systems/tierroute/pkg/store/sqlite"
)

// App is a configured routing service.
type App struct {
	Registry *adapter.Registry
	Engine   *router.Engine
	Store    store.Store

	cfg     *config.Config
	aliases *config.ModelAliases
	logger  zerolog.Logger

	mu      sync.Mutex
	creds   config.Credentials
	routing *config.RoutingConfig
}

type options struct {
	store   store.Store
	aliases *config.ModelAliases
	logger  *zerolog.Logger
}

// Option configures New.
type Option func(*options)

// WithStore uses s instead of the configured sink.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithAliases uses a instead of the models.yaml lookup.
func WithAliases(a *config.ModelAliases) Option {
	return func(o *options) { o.aliases = a }
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// New builds an App from cfg. Backends that cannot be built are logged and
// left unregistered; routing to them fails with a not-found error.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil || cfg.Routing == nil {
		return nil, errors.New("app: routing config is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}

	aliases := o.aliases
	if aliases == nil {
		loaded, err := LoadAliases()
		if err != nil {
			return nil, err
		}
		aliases = loaded
	}

	rc := cfg.Routing
	reg := adapter.NewRegistry()
	if _, err := adapter.RegisterAll(ctx, reg, rc.Backends, cfg.Credentials, aliases, logger); err != nil {
		logger.Warn().Err(err).Msg("some backends are unavailable")
	}

	tiers, err := router.TierTableFromConfig(rc.Tiers)
	if err != nil {
		return nil, err
	}

	cls, err := buildClassifier(rc.Classifier, reg, logger)
	if err != nil {
		return nil, err
	}

	st := o.store
	if st == nil {
		st, err = OpenStore(ctx, rc.Sink)
		if err != nil {
			return nil, err
		}
	}

	engine, err := router.NewEngine(cls, reg,
		router.WithTierTable(tiers),
		router.WithSink(st),
		router.WithFallback(router.FallbackPolicy{Enabled: rc.Fallback.Enabled, MaxHops: rc.Fallback.MaxHops}),
		router.WithSinkTimeout(rc.Sink.AppendTimeout),
		router.WithLogger(logger),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		Registry: reg,
		Engine:   engine,
		Store:    st,
		cfg:      cfg,
		aliases:  aliases,
		logger:   logger,
		creds:    cfg.Credentials,
		routing:  rc,
	}, nil
}

// LoadAliases reads ~/.tierroute/models.yaml over the built-in aliases.
func LoadAliases() (*config.ModelAliases, error) {
	aliases, err := config.FindAliases(config.UserAliasesPath())
	if err != nil {
		return nil, fmt.Errorf("load model aliases: %w", err)
	}
	return aliases, nil
}

func buildClassifier(cc config.ClassifierConfig, reg *adapter.Registry, logger zerolog.Logger) (classifier.Classifier, error) {
	deps := classifier.Deps{
		Rules: classifier.RuleConfig{
			ComplexLength:  cc.ComplexLength,
			ModerateLength: cc.ModerateLength,
			Keywords:       cc.Keywords,
		},
		ReasoningName:      cc.Backend,
		ReasoningMaxTokens: cc.MaxTokens,
		Logger:             logger,
	}
	if cc.Backend != "" {
		if _, err := reg.Resolve(cc.Backend); err == nil {
			deps.Reasoning = adapter.Lookup(reg, cc.Backend)
		} else {
			logger.Warn().Err(err).Str("backend", cc.Backend).Msg("classifier backend unavailable")
		}
	}
	return classifier.NewStrategies().New(cc.Strategy, deps)
}

// OpenStore opens the sink described by sc, mirrored to any extra drivers
// listed in sc.Mirrors.
func OpenStore(ctx context.Context, sc config.SinkConfig) (store.Store, error) {
	primary, err := openDriver(ctx, sc.Driver, sc)
	if err != nil {
		return nil, err
	}
	if len(sc.Mirrors) == 0 {
		return primary, nil
	}

	var mirrors []router.Sink
	for _, driver := range sc.Mirrors {
		if driver == sc.Driver {
			continue
		}
		m, err := openDriver(ctx, driver, sc)
		if err != nil {
			store.NewMirror(primary, mirrors...).Close()
			return nil, fmt.Errorf("mirror %s: %w", driver, err)
		}
		mirrors = append(mirrors, m)
	}
	return store.NewMirror(primary, mirrors...), nil
}

func openDriver(ctx context.Context, driver string, sc config.SinkConfig) (store.Store, error) {
	switch driver {
	case config.SinkMemory:
		return store.NewMemory(0), nil
	case config.SinkRedis:
		return redis.New(ctx, redis.Config{Addr: sc.RedisAddr, Stream: sc.RedisStream, MaxLen: sc.RedisMaxLen})
	case config.SinkSQLite, "":
		return sqlite.New(sc.Path)
	default:
		return nil, fmt.Errorf("unknown sink driver %q", driver)
	}
}

// Routing returns the active routing config.
func (a *App) Routing() *config.RoutingConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.routing
}

// Aliases returns the model aliases in use.
func (a *App) Aliases() *config.ModelAliases {
	return a.aliases
}

// Credentials returns the credentials in use.
func (a *App) Credentials() config.Credentials {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creds
}

// UpdateCredentials merges update into the current credentials and
// re-registers every backend, so requests after the call see the new keys.
// Keys are kept in memory only.
func (a *App) UpdateCredentials(ctx context.Context, update config.Credentials) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.creds = a.creds.Merge(update)
	registered, err := adapter.RegisterAll(ctx, a.Registry, a.routing.Backends, a.creds, a.aliases, a.logger)
	a.logger.Info().Strs("providers", a.creds.Configured()).Msg("credentials updated")
	return registered, err
}

// ApplyRouting switches to rc: backends are re-registered, dropped backends
// are unregistered, and the tier table is swapped. The classifier strategy
// and sink are fixed for the life of the App.
func (a *App) ApplyRouting(ctx context.Context, rc *config.RoutingConfig) error {
	a.cfg.ApplySettings(rc)
	if err := rc.Validate(); err != nil {
		return err
	}
	tiers, err := router.TierTableFromConfig(rc.Tiers)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	keep := make(map[string]bool, len(rc.Backends))
	for _, b := range rc.Backends {
		keep[b.Name] = true
	}
	for _, name := range a.Registry.Names() {
		if !keep[name] {
			a.Registry.Unregister(name)
		}
	}

	if _, err := adapter.RegisterAll(ctx, a.Registry, rc.Backends, a.creds, a.aliases, a.logger); err != nil {
		a.logger.Warn().Err(err).Msg("some backends are unavailable after reload")
	}
	if err := a.Engine.SetTierTable(tiers); err != nil {
		return err
	}
	if rc.Classifier.Strategy != a.routing.Classifier.Strategy {
		a.logger.Warn().
			Str("active", a.routing.Classifier.Strategy).
			Str("configured", rc.Classifier.Strategy).
			Msg("classifier strategy change takes effect on restart")
	}
	a.routing = rc
	a.logger.Info().Strs("backends", a.Registry.Names()).Msg("routing config applied")
	return nil
}

// Cleanup removes records older than the configured retention. Stores
// without retention support report zero.
func (a *App) Cleanup(ctx context.Context) (int64, error) {
	c, ok := a.Store.(store.Cleaner)
	if !ok {
		return 0, nil
	}
	days := a.Routing().Sink.RetentionDays
	if days <= 0 {
		return 0, nil
	}
	return c.Cleanup(ctx, time.Now().AddDate(0, 0, -days))
}

// Close releases the sink.
func (a *App) Close() error {
	return a.Store.Close()
}
