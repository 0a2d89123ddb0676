package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/internal/app"
	"github.com/marcelsud/webhook-flow/metrics"
	"github.com/marcelsud/webhook-flow/worker"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/* worker consumes every configured queue, runs the scheduler and the alerting monitor
 * Several worker processes may share one redis: consumer groups split the jobs and the scheduler claims events atomically
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	if cfg.GetQueueDriver() == "memory" {
		fmt.Println("QUEUE_DRIVER=memory cannot be shared with the api process, run cmd/api alone instead")
		return
	}
	logger := app.NewLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	workerID := cfg.GetWorkerID()
	a, err := app.Open(ctx, cfg, workerID, logger)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer a.Close(context.Background())

	exporter, err := metrics.NewOTelExporter(a.Collector, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	events := make(chan worker.Event, 256)
	pool, err := a.Pool(workerID, events)
	if err != nil {
		fmt.Println(err)
		return
	}
	monitor, err := a.Monitor(exporter, "webhook-flow-worker-"+workerID)
	if err != nil {
		fmt.Println(err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return a.Scheduler().Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx, events) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, exporter.Handler()) })
	}

	logger.Info("worker running", "worker_id", workerID, "queues", pool.Queues())
	if err := g.Wait(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("\nShutting down worker...\n")
}

func serveMetrics(ctx context.Context, addr string, h http.Handler) error {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", h)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         addr,
		Handler:      r,
	}
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), TIMEOUT)
		defer cancel()
		srv.Shutdown(ctxTimeout)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
