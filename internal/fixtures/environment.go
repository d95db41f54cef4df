// internal/fixtures/environment.go
package fixtures

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/observability"
)

// Environment is everything a test session shares: configuration, logger,
// metrics, the seeded database and the running mock server.
type Environment struct {
	Config  config.Interface
	Logger  *zap.Logger
	Metrics *observability.Metrics
	DB      Database
	Seed    *SeedData
	Server  *Server
	Creds   *CredentialPool
}

type envOptions struct {
	port      *int
	seed      []byte
	serverOps []ServerOption
}

// EnvOption tweaks StartEnvironment.
type EnvOption func(*envOptions)

// WithPort overrides the configured server port. Zero picks a free port.
func WithPort(port int) EnvOption {
	return func(o *envOptions) { o.port = &port }
}

// WithSeedYAML replaces the built-in seed data.
func WithSeedYAML(raw []byte) EnvOption {
	return func(o *envOptions) { o.seed = raw }
}

func WithServerOptions(opts ...ServerOption) EnvOption {
	return func(o *envOptions) { o.serverOps = append(o.serverOps, opts...) }
}

// StartEnvironment opens and seeds the database, then starts the mock
// server. On failure everything already started is released.
func StartEnvironment(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...EnvOption) (env *Environment, err error) {
	o := envOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger = observability.OrNop(logger)

	env = &Environment{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Creds:   NewCredentialPool(cfg.TestData(), logger),
	}
	defer func() {
		if err != nil {
			_ = env.Close(context.Background())
			env = nil
		}
	}()

	if env.Seed, err = LoadSeed(o.seed); err != nil {
		return env, err
	}
	if env.DB, err = OpenDatabase(ctx, cfg.Database(), logger); err != nil {
		return env, fmt.Errorf("failed to open database: %w", err)
	}
	if err = Seed(ctx, env.DB, env.Seed, logger); err != nil {
		return env, err
	}

	sc := cfg.Server()
	port := sc.Port
	if o.port != nil {
		port = *o.port
	}
	serverOpts := append([]ServerOption{
		WithServerMetrics(env.Metrics),
		WithHealthPolicy(cfg.Retry().Policy()),
	}, o.serverOps...)
	env.Server = NewServer(sc.Host, port, env.DB, logger, serverOpts...)
	if err = env.Server.Start(ctx); err != nil {
		return env, err
	}
	logger.Info("Test environment ready", zap.String("base_url", env.Server.BaseURL()))
	return env, nil
}

// BaseURL is the mock server's URL.
func (e *Environment) BaseURL() string {
	if e.Server == nil {
		return ""
	}
	return e.Server.BaseURL()
}

// Reset restores the seed data between tests.
func (e *Environment) Reset(ctx context.Context) error {
	return Reset(ctx, e.DB, e.Seed, e.Logger)
}

// Close stops the server, drops the seeded tables and closes the database.
// It is safe on a partially started environment.
func (e *Environment) Close(ctx context.Context) error {
	var errs []error
	if e.Server != nil {
		errs = append(errs, e.Server.Stop(ctx))
	}
	if e.DB != nil {
		if e.Seed != nil {
			errs = append(errs, Teardown(ctx, e.DB, e.Seed, e.Logger))
		}
		errs = append(errs, e.DB.Close())
	}
	return errors.Join(errs...)
}
