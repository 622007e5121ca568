// Package app assembles stores and services from configuration. Both the API
// and the housekeeping process start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/eduloan/internal/auth"
	"github.com/geocoder89/eduloan/internal/config"
	"github.com/geocoder89/eduloan/internal/db"
	"github.com/geocoder89/eduloan/internal/directory"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/housekeeping"
	"github.com/geocoder89/eduloan/internal/identity"
	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/geocoder89/eduloan/internal/redisclient"
	"github.com/geocoder89/eduloan/internal/registry"
	"github.com/geocoder89/eduloan/internal/repo/memory"
	"github.com/geocoder89/eduloan/internal/repo/postgres"
	redisrepo "github.com/geocoder89/eduloan/internal/repo/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// AccountStore is what both the directory and the identity service need;
// profile and credential writes stay separate methods.
type AccountStore interface {
	directory.Store
	identity.AccountStore
}

type App struct {
	Config   config.Config
	Log      *slog.Logger
	Metrics  *prometheus.Registry
	Prom     *observability.Prom
	Accounts AccountStore
	Sessions identity.SessionStore

	Identity     *identity.Service
	Applications *registry.Service
	Directory    *directory.Service

	// Checks are the backends /readyz pings, keyed by name.
	Checks map[string]func(ctx context.Context) error

	closers []func()
}

// Build connects the configured backends and wires the services. Close
// releases whatever Build opened.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: reg,
		Prom:    observability.NewProm(reg),
		Checks:  map[string]func(ctx context.Context) error{},
	}

	var appStore registry.Store

	switch cfg.Store {
	case config.StorePostgres:
		if err := db.Migrate(cfg.DBURL); err != nil {
			return nil, err
		}

		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.Checks["postgres"] = pool.Ping

		a.Accounts = postgres.NewAccountsRepo(pool, a.Prom)
		appStore = postgres.NewApplicationsRepo(pool, a.Prom)
	case config.StoreMemory:
		accounts := memory.NewAccountsRepo(cfg.SimulatedLatency)
		a.Accounts = accounts
		appStore = memory.NewApplicationsRepo(cfg.SimulatedLatency, accounts)
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	switch cfg.SessionStore {
	case config.SessionsRedis:
		rc := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rc.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.Checks["redis"] = rc.Ping

		a.Sessions = redisrepo.NewSessionsRepo(rc.Raw())
	case config.StoreMemory:
		a.Sessions = memory.NewSessionsRepo()
	default:
		a.Close()
		return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}

	a.Identity = identity.New(a.Accounts, a.Sessions, auth.NewManager(cfg.JWTSecret), identity.Config{
		SessionTTL: cfg.SessionTTL,
		Timeout:    cfg.OperationTimeout,
	}, log, a.Prom)

	a.Applications = registry.New(appStore, a.Accounts, registry.Config{Timeout: cfg.OperationTimeout}, log, a.Prom)
	a.Directory = directory.New(a.Accounts, a.Applications, a.Identity, directory.Config{Timeout: cfg.OperationTimeout}, log)

	if err := a.seed(ctx, appStore); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) seed(ctx context.Context, apps registry.Store) error {
	cfg := a.Config

	if err := db.EnsureAdmin(ctx, a.Accounts, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	if !cfg.SeedDemo {
		return nil
	}

	if err := db.SeedDemo(ctx, a.Log, a.Accounts, apps); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

// Housekeeping builds the maintenance scheduler over the wired services.
func (a *App) Housekeeping() (*housekeeping.Scheduler, error) {
	return housekeeping.New(housekeeping.Config{
		SweepSchedule:   a.Config.SweepSchedule,
		BacklogSchedule: a.Config.BacklogSchedule,
		JobTimeout:      a.Config.OperationTimeout,
	}, a.Identity, a.Applications, a.Prom, a.Log)
}

// Ping checks every backend; memory-only setups always pass.
func (a *App) Ping(ctx context.Context) error {
	for name, ping := range a.Checks {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// HasRole reports whether any account holds role. Used at startup to warn
// about portals nobody can reach.
func (a *App) HasRole(ctx context.Context, role account.Role) (bool, error) {
	counts, err := a.Directory.CountByRole(ctx)
	if err != nil {
		return false, err
	}
	return counts[role] > 0, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
