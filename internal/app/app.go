// Package app wires a workspace into a running triage core.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"leadtriage/internal/config"
	"leadtriage/internal/db"
	"leadtriage/internal/engine"
	"leadtriage/internal/migrate"
	"leadtriage/internal/outcomes"
	"leadtriage/internal/repo"
	"leadtriage/internal/scoring"
	"leadtriage/internal/session"
	"leadtriage/internal/telemetry"
)

// App is an opened workspace.
type App struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Sessions  *session.Manager
	Logger    *slog.Logger
}

// Open opens the workspace database, applies migrations, loads triage.yml
// (falling back to defaults) and builds the engine and session manager.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn)
	eng.Scores = telemetry.WrapProvider(ScoringProvider(cfg, eng.Repo))
	sessions := session.NewManager(eng, session.Options{
		Delay:   cfg.Drafts.Debounce,
		Logger:  logger.With("component", "session"),
		OnFlush: telemetry.FlushRecorder(),
	})
	return &App{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    eng,
		Sessions:  sessions,
		Logger:    logger,
	}, nil
}

// Close flushes pending draft edits and closes the database.
func (a *App) Close(ctx context.Context) error {
	flushErr := a.Sessions.Close(ctx)
	return errors.Join(flushErr, a.DB.Close())
}

// ScoringProvider selects the scoring source named in the config.
func ScoringProvider(cfg *config.Config, r repo.Repo) scoring.Provider {
	if cfg.Scoring.Source == "http" {
		return scoring.NewHTTPProvider(cfg.Scoring.URL, cfg.Scoring.Timeout)
	}
	return scoring.TableProvider{Repo: r}
}

// OutcomeIngestor builds the Kafka ingestor when brokers are configured.
// It returns nil when outcome ingestion is off.
func (a *App) OutcomeIngestor() (*outcomes.Ingestor, error) {
	k := a.Config.Outcomes.Kafka
	if !k.Enabled() {
		return nil, nil
	}
	reader, err := outcomes.NewKafkaReader(k.Brokers, k.Topic, k.GroupID)
	if err != nil {
		return nil, err
	}
	return &outcomes.Ingestor{
		Reader: reader,
		Store:  a.Engine.Repo,
		Logger: a.Logger.With("component", "outcomes"),
		Now:    a.Engine.Now,
	}, nil
}
