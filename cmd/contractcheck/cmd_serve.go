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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/contracts/services/contract"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the contract API over HTTP",
		Long: `Serve the /v1/contracts endpoints and /metrics. The catalog is loaded
at startup when one is configured and reloaded on change when
catalog.watch is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// newRouter builds the HTTP handler for a service. The returned Handlers
// must be closed on shutdown to end event streams.
func newRouter(svc *contract.Service) (*gin.Engine, *contract.Handlers) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers := contract.NewHandlers(svc)
	v1 := router.Group("/v1")
	contract.RegisterRoutes(v1, handlers)
	return router, handlers
}

// openReportStore opens the configured report store. It returns nil and a
// no-op close when store.path is empty.
func (a *app) openReportStore() (contract.ReportStore, func() error, error) {
	if a.cfg.Store.Path == "" {
		return nil, func() error { return nil }, nil
	}
	db, err := contract.OpenReportDB(a.cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	store, err := contract.NewBadgerReportStore(db, a.cfg.Store.TTL, a.logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// serve runs the HTTP server until ctx is cancelled.
func (a *app) serve(ctx context.Context) (err error) {
	shutdownMetrics, err := setupMetrics(metricsOptions{
		stdout:     a.flags.trace,
		writer:     os.Stderr,
		registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, shutdownMetrics(context.WithoutCancel(ctx)))
	}()

	store, closeStore, err := a.openReportStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close report store: %w", cerr))
		}
	}()

	opts := []contract.ServiceOption{contract.WithServiceLogger(a.logger)}
	if store != nil {
		opts = append(opts, contract.WithReportStore(store))
	}
	svc, err := contract.NewService(a.cfg, opts...)
	if err != nil {
		return err
	}

	if a.cfg.Catalog.Path != "" {
		if _, err := svc.Reload(ctx); err != nil {
			// The server still starts; POST /reload can recover once the
			// file is fixed.
			a.logger.Error("initial catalog load failed",
				slog.String("path", a.cfg.Catalog.Path),
				slog.String("error", err.Error()),
			)
		}
		if a.cfg.Catalog.Watch {
			go func() {
				if err := svc.Watch(ctx); err != nil {
					a.logger.Error("catalog watch stopped", slog.String("error", err.Error()))
				}
			}()
		}
	} else {
		a.logger.Warn("no catalog configured; serving without one")
	}

	gin.SetMode(gin.ReleaseMode)
	router, handlers := newRouter(svc)
	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: router,
	}
	srv.RegisterOnShutdown(handlers.Close)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("contract API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
