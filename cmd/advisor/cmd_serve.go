// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the advisor HTTP API",
	Long: `Serve the advisor API under /v1/advisor and Prometheus metrics under
/metrics.

The knowledge base is reloaded on SIGHUP, on POST /v1/advisor/reload,
and, with knowledge_base.watch, whenever its file changes. A rejected
reload keeps the active knowledge base.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, appConfig.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	e, src, release, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer release()

	srv, reloader, err := buildServer(e, src, logger)
	if err != nil {
		return err
	}

	rb := e.Snapshot()
	logger.Info("advisor starting",
		"addr", appConfig.Server.Addr,
		"kb", src.String(),
		"kb_version", rb.Version(),
		"rules", rb.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("advisor shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		reloadOnHangup(gctx, reloader, logger)
		return nil
	})
	if fs, ok := src.(kb.FileSource); ok && appConfig.KnowledgeBase.Watch {
		w, err := kb.NewWatcher(fs.Path, reloader, logger, &kb.WatcherOptions{
			Debounce: appConfig.KnowledgeBase.Debounce,
		})
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", fs.Path, err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	return g.Wait()
}

// buildServer wires the service, reloader, metrics, and router for e.
func buildServer(e *engine.Engine, src kb.Source, logger *logging.Logger) (*http.Server, *kb.Reloader, error) {
	meter := otel.Meter(telemetry.TracerName)
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if _, err := metrics.RegisterRuleBaseGauge(meter, func() int64 {
		return int64(e.Snapshot().Len())
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register rule gauge: %w", err)
	}

	svc, err := advisor.NewService(e, advisor.ServiceOptions{Metrics: metrics, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	reloader := kb.NewReloader(e, src, logger, kb.ReloaderOptions{
		AllowDowngrade: appConfig.KnowledgeBase.AllowDowngrade,
		OnReload:       svc.RecordReload,
	})
	svc.SetReloader(reloader)

	gin.SetMode(appConfig.Server.GinMode)
	router := advisor.NewRouter(advisor.NewHandlers(svc), advisor.RouterOptions{
		ServiceName: appConfig.Telemetry.ServiceName,
		RateLimit:   appConfig.Server.RateLimit,
		RateBurst:   appConfig.Server.RateBurst,
	})

	return &http.Server{
		Addr:              appConfig.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: appConfig.Server.ReadHeaderTimeout,
	}, reloader, nil
}

// reloadOnHangup reloads the knowledge base on every SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, r *kb.Reloader, logger *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading knowledge base")
			if _, err := r.Reload(ctx); err != nil {
				logger.Warn("reload failed", "error", err)
			}
		}
	}
}
