package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/eduloan/internal/app"
	"github.com/geocoder89/eduloan/internal/config"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/housekeeping"
	httpx "github.com/geocoder89/eduloan/internal/http"
	"github.com/geocoder89/eduloan/internal/observability"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if cfg.TracingEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracingConfig{
			ServiceName: "eduloan-api",
			Env:         cfg.Env,
			Endpoint:    cfg.OTELEndpoint,
			SampleRatio: cfg.TraceSampleRatio,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	bootCtx, cancelBoot := config.WithTimeout(30 * time.Second)
	a, err := app.Build(bootCtx, cfg, log)
	cancelBoot()
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if ok, err := a.HasRole(context.Background(), account.RoleAdmin); err == nil && !ok {
		log.Warn("no admin account exists; set ADMIN_EMAIL and ADMIN_PASSWORD or SEED_DEMO=true")
	}

	var sched *housekeeping.Scheduler
	if cfg.EmbedHousekeeping {
		sched, err = a.Housekeeping()
		if err != nil {
			log.Error("housekeeping init failed", "err", err)
			os.Exit(1)
		}
		sched.Start()
	}

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Identity:     a.Identity,
		Applications: a.Applications,
		Directory:    a.Directory,
		Prom:         a.Prom,
		Gatherer:     a.Metrics,
		Checks:       a.Checks,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.OperationTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store, "sessions", cfg.SessionStore)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if sched != nil {
			if err := sched.Stop(ctx); err != nil {
				log.Error("housekeeping stop failed", "err", err)
			}
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
