package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-flow/config"
	"github.com/marcelsud/webhook-flow/internal/app"
	"github.com/marcelsud/webhook-flow/internal/http/chi"
	"github.com/marcelsud/webhook-flow/metrics"
	"github.com/marcelsud/webhook-flow/worker"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/* api is the ingestion entry point: provider webhooks in, executions out
 * With QUEUE_DRIVER=memory the queue cannot be shared, so workers and the scheduler run in this process too
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := app.NewLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	a, err := app.Open(ctx, cfg, "api-"+cfg.GetWorkerID(), logger)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer a.Close(context.Background())

	adapters := app.Adapters(cfg.MetaVerifyToken)
	webhooks := a.Webhooks(adapters)

	exporter, err := metrics.NewOTelExporter(a.Collector, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	r := chi.Handlers(ctx, chi.Deps{
		Webhooks:   webhooks,
		Adapters:   adapters,
		Secrets:    cfg,
		Jobs:       a.Jobs,
		Executions: a.Workflows,
		Metrics:    exporter.Handler(),
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.GetPort(),
		Handler:      r,
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Memory() {
		if err := runInProcess(gctx, g, a, exporter); err != nil {
			fmt.Println(err)
			return
		}
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, gctx, errShutdown)
	logger.Info("listening", "port", cfg.GetPort(), "providers", adapters.Providers())
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
	}

	// accepted deliveries are still being started in the background
	ctxWait, cancel := context.WithTimeout(context.Background(), TIMEOUT)
	defer cancel()
	if err := webhooks.Wait(ctxWait); err != nil {
		fmt.Println(err)
	}
	if err := g.Wait(); err != nil {
		fmt.Println(err)
	}
}

func runInProcess(ctx context.Context, g *errgroup.Group, a *app.App, exporter *metrics.OTelExporter) error {
	events := make(chan worker.Event, 256)
	pool, err := a.Pool(a.Config.GetWorkerID(), events)
	if err != nil {
		return err
	}
	monitor, err := a.Monitor(exporter, "webhook-flow-api")
	if err != nil {
		return err
	}
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return a.Scheduler().Run(ctx) })
	g.Go(func() error { return monitor.Run(ctx, events) })
	return nil
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
