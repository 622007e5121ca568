// Command worker runs housekeeping on its own, for deployments where the API
// replicas share postgres and redis and should not each run the schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/eduloan/internal/app"
	"github.com/geocoder89/eduloan/internal/config"
	"github.com/geocoder89/eduloan/internal/housekeeping"
	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	if cfg.SessionStore == config.StoreMemory {
		log.Warn("worker sweeps its own in-memory session store; run housekeeping embedded in the API instead")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// the API seeds; the worker only reads
	cfg.SeedDemo = false
	cfg.AdminEmail = ""

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}

	defer a.Close()

	sched, err := a.Housekeeping()
	if err != nil {
		log.Error("housekeeping init failed", "err", err)
		os.Exit(1)
	}

	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Metrics, promhttp.HandlerOpts{}))
	mux.Handle("/", housekeeping.Handler(sched, a, shuttingDown.Load))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	// refresh the gauges once before the first tick
	for _, name := range sched.Jobs() {
		if err := sched.RunNow(ctx, name); err != nil {
			log.Warn("initial run failed", "job", name, "err", err)
		}
	}

	sched.Start()
	log.Info("worker has started", "jobs", sched.Jobs(), "port", cfg.WorkerPort)

	<-ctx.Done()
	shuttingDown.Store(true)

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("housekeeping stop failed", "err", err)
	}
	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
