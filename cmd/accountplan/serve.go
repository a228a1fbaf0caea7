package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/accountplan"
	"github.com/hupe1980/accountplan/config"
	"github.com/hupe1980/accountplan/engine"
	"github.com/hupe1980/accountplan/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides config)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	logger, err := accountplan.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := accountplan.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.Callbacks().RegisterCallback(engine.NewLoggingCallback(engine.CallbackOnStageChange, func(msg string) {
		logger.Debug(msg)
	}))

	srv := server.New(svc, func(o *server.Options) {
		o.CorsOrigins = cfg.Server.CorsOrigins
		o.BodyLimitMB = cfg.Server.BodyLimitMB
		o.Logger = logger
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
