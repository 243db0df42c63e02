package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HatiCode/fdbwatch/cmd/fdbwatch/metrics"
	"github.com/HatiCode/fdbwatch/cmd/fdbwatch/router"
	"github.com/HatiCode/fdbwatch/pkg/archive"
	"github.com/HatiCode/fdbwatch/pkg/httpx"
	"github.com/HatiCode/fdbwatch/pkg/storage"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Check models periodically and serve reports, metrics and gRPC health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateServe(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return a.serve(cmd.Context())
		},
	}
	a.cfg.BindServeFlags(cmd.Flags())
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger

	log.Info("starting fdbwatch",
		"version", version,
		"index", cfg.Index,
		"listen", cfg.Listen,
		"grpc_listen", cfg.GRPCListen,
		"storage", cfg.Storage,
		"tls_enabled", cfg.TLS.Enabled,
	)

	checker, idx, err := a.checker()
	if err != nil {
		return err
	}
	models, err := resolveModels(checker.Catalog(), cfg.Models)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	checker.OnQuery(m.IndexQueryHook(idx.Name()))

	serverTLS, err := cfg.TLS.Server()
	if err != nil {
		return fmt.Errorf("server TLS: %w", err)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, model := range models {
		healthServer.SetServingStatus(model, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}

	monitor := NewMonitor(checker, models, store, healthServer, m, log)

	handler := router.SetupRoutes(router.Options{
		Store:      store,
		StaleAfter: cfg.StaleThreshold(),
		Gatherer:   reg,
		Health:     func() error { return monitor.Healthy(cfg.StaleThreshold()) },
		Logger:     log,
	})
	httpServer := httpx.NewServer(cfg.Listen, handler, log)
	if serverTLS != nil {
		httpServer.SetTLSConfig(serverTLS)
	}

	errCh := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		var opts []grpc.ServerOption
		if serverTLS != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(serverTLS)))
		}
		grpcServer = grpc.NewServer(opts...)
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		reflection.Register(grpcServer)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			log.Info("grpc health server listening", "address", cfg.GRPCListen)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		if err := monitor.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("monitor loop failed", "error", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("server failed", "error", runErr)
	}

	log.Info("shutting down")
	cancel()
	<-monitorDone

	healthServer.Shutdown()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := httpServer.Stop(10 * time.Second); err != nil {
		return err
	}

	log.Info("shutdown complete")
	return runErr
}

func (a *app) openStore() (storage.Store, error) {
	switch a.cfg.Storage {
	case "redis":
		store, err := storage.NewRedisStore(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.cfg.ReportTTL)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		a.logger.Info("using redis storage", "addr", a.cfg.RedisAddr, "db", a.cfg.RedisDB, "ttl", a.cfg.ReportTTL)
		return store, nil
	default:
		a.logger.Info("using in-memory storage", "ttl", a.cfg.ReportTTL)
		return storage.NewMemoryStoreWithTTL(a.cfg.ReportTTL, time.Minute), nil
	}
}

// resolveModels returns requested, or every catalog model when empty, after
// checking that each one is in the catalog.
func resolveModels(cat *archive.Catalog, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return cat.Models(), nil
	}
	for _, model := range requested {
		if _, err := cat.Collection(model); err != nil {
			return nil, err
		}
	}
	return requested, nil
}
