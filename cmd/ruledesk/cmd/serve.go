package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/ruledesk/internal/core/api"
	"github.com/solatis/ruledesk/internal/core/config"
	"github.com/solatis/ruledesk/internal/core/server"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC admin API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().Duration("mock-latency", 0, "simulated latency of the in-memory store")
	serveCmd.Flags().Int("fault-every", 0, "fail every Nth in-memory store call (0 disables)")
	serveCmd.Flags().String("seed", "", "rule fixture file loaded into an empty store")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("mock-latency") {
		cfg.MockLatency, _ = flags.GetDuration("mock-latency")
	}
	if flags.Changed("fault-every") {
		cfg.FaultEvery, _ = flags.GetInt("fault-every")
	}
	if flags.Changed("seed") {
		cfg.SeedPath, _ = flags.GetString("seed")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	service, err := api.NewAdminService(repo, cat, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting RuleDesk admin API",
		zap.String("version", Version),
		zap.String("addr", cfg.Addr()),
		zap.String("store", cfg.Store))

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
