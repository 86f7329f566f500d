package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"moviedex/internal/grpcserver"
	"moviedex/internal/logging"
	"moviedex/internal/saved"
	"moviedex/internal/trends"
	"moviedex/pkg/database"
	"moviedex/pkg/utils"
)

func main() {
	v := utils.NewViper()

	cmd := &cobra.Command{
		Use:          "moviedex-grpc",
		Short:        "Read-only gRPC view of saved movies and search trends",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(utils.ConfigFrom(v))
		},
	}
	cmd.Flags().String("grpc-addr", v.GetString("grpc_addr"), "gRPC listen address")
	cmd.Flags().String("db-path", v.GetString("db_path"), "SQLite database file")
	_ = v.BindPFlag("grpc_addr", cmd.Flags().Lookup("grpc-addr"))
	_ = v.BindPFlag("db_path", cmd.Flags().Lookup("db-path"))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg utils.Config) error {
	log, closer := logging.New(cfg.Log)
	defer closer.Close()
	database.SetMigrationLogger(logging.Component(log, "migrate"))

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen failed: %w", err)
	}

	// read-only surface: no event hub, no metrics
	svc := grpcserver.NewServer(
		saved.NewEngine(saved.NewRepo(db), nil, nil, log),
		trends.NewAggregator(trends.NewRepo(db), nil, nil, log),
		log,
	)
	gs := grpcserver.NewGRPCServer(svc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", "signal", sig.String())
		gs.GracefulStop()
	}()

	log.Info("gRPC server listening", "addr", cfg.GRPCAddr, "service", grpcserver.ServiceName)
	if err := gs.Serve(listener); err != nil {
		return fmt.Errorf("grpc server stopped: %w", err)
	}
	return nil
}
