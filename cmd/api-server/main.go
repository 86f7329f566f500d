package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"moviedex/internal/catalog"
	"moviedex/internal/logging"
	"moviedex/internal/metrics"
	"moviedex/internal/server"
	synchub "moviedex/internal/sync"
	"moviedex/pkg/database"
	"moviedex/pkg/utils"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	v := utils.NewViper()

	root := &cobra.Command{
		Use:           "moviedex-api",
		Short:         "moviedex HTTP API, live event feed and metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), utils.ConfigFrom(v))
		},
	}

	flags := root.PersistentFlags()
	flags.String("http-addr", v.GetString("http_addr"), "HTTP listen address")
	flags.String("sync-addr", v.GetString("sync_addr"), "TCP event feed listen address")
	flags.String("db-path", v.GetString("db_path"), "SQLite database file")
	flags.String("log-level", v.GetString("log_level"), "debug, info, warn or error")
	_ = v.BindPFlag("http_addr", flags.Lookup("http-addr"))
	_ = v.BindPFlag("sync_addr", flags.Lookup("sync-addr"))
	_ = v.BindPFlag("db_path", flags.Lookup("db-path"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the API server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), utils.ConfigFrom(v))
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(utils.ConfigFrom(v), cmd)
			},
		},
	)
	return root
}

func dbConfig(cfg utils.Config) database.Config {
	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	return dbCfg
}

func migrate(cfg utils.Config, cmd *cobra.Command) error {
	log, closer := logging.New(cfg.Log)
	defer closer.Close()
	database.SetMigrationLogger(logging.Component(log, "migrate"))

	dbCfg := dbConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}
	version, err := database.Version(db)
	if err != nil {
		return err
	}
	cmd.Printf("database %s at version %d\n", dbCfg.Path, version)
	return nil
}

func serve(ctx context.Context, cfg utils.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, closer := logging.New(cfg.Log)
	defer closer.Close()
	database.SetMigrationLogger(logging.Component(log, "migrate"))

	if cfg.IsProduction() && cfg.Auth.JWTSecret == utils.DefaultJWTSecret {
		return errors.New("MOVIEDEX_JWT_SECRET must be set in production")
	}

	dbCfg := dbConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if cfg.Catalog.APIKey == "" {
		log.Warn("MOVIEDEX_TMDB_API_KEY is empty; catalog requests will be rejected upstream")
	}
	cat := catalog.New(catalog.Options{
		BaseURL:      cfg.Catalog.BaseURL,
		ImageBaseURL: cfg.Catalog.ImageBaseURL,
		APIKey:       cfg.Catalog.APIKey,
		Timeout:      cfg.Catalog.Timeout,
		CacheTTL:     cfg.Catalog.CacheTTL,
		Logger:       log,
		Metrics:      m,
	})

	hub := synchub.NewHub()
	app := server.New(server.Deps{
		Config:  cfg,
		DB:      db,
		Catalog: cat,
		Hub:     hub,
		Metrics: m,
		Log:     log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tcpSrv := synchub.NewServer(cfg.SyncAddr, hub, log)

	errCh := make(chan error, 2)
	var wg conc.WaitGroup

	wg.Go(func() {
		if err := tcpSrv.Run(); err != nil {
			errCh <- fmt.Errorf("tcp sync: %w", err)
		}
	})
	wg.Go(func() {
		log.Info("HTTP API server listening", "addr", cfg.HTTPAddr, "db", dbCfg.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	})

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-sigCtx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("server error", "error", runErr)
	}

	log.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Error("tcp shutdown error", "error", err)
	}
	hub.Close()

	wg.Wait()
	log.Info("servers stopped")
	return runErr
}
