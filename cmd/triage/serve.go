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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leadtriage/internal/app"
	"leadtriage/internal/config"
	"leadtriage/internal/logging"
	"leadtriage/internal/server"
	"leadtriage/internal/telemetry"
)

const version = "0.1.0"

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Serves the triage API. Outcome ingestion from Kafka and webhook delivery start when configured in triage.yml.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if cmd.Flags().Changed("log-level") {
				level = viper.GetString("log-level")
			}
			logger := logging.New(level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := telemetry.Init(ctx, telemetry.Options{Enabled: cfg.Telemetry.Enabled, Stdout: cfg.Telemetry.Stdout}, "leadtriage", version); err != nil {
				return err
			}
			defer telemetry.Shutdown(context.Background())

			a, err := app.Open(ctx, workspace, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					logger.Error("close workspace", "err", err)
				}
			}()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			secret := cfg.Auth.JWTSecret
			if env := os.Getenv("TRIAGE_JWT_SECRET"); env != "" {
				secret = env
			}
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				Sessions: a.Sessions,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
				Logger:   logger.With("component", "http"),
			})
			if err != nil {
				return err
			}

			server.StartWebhooks(ctx, a.Engine.Repo, cfg.Webhooks, logger)

			ingestor, err := a.OutcomeIngestor()
			if err != nil {
				return err
			}
			if ingestor != nil {
				defer ingestor.Reader.Close()
				go func() {
					if err := ingestor.Run(ctx); err != nil {
						logger.Error("outcome ingestion stopped", "err", err)
					}
				}()
			}

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Lead Triage API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from triage.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from triage.yml)")
	return cmd
}
