// Package app wires configuration, storage, the status registry and the
// engine into one handle shared by the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"reqline/internal/blob"
	"reqline/internal/config"
	"reqline/internal/db"
	"reqline/internal/engine"
	"reqline/internal/metrics"
	"reqline/internal/migrate"
	"reqline/internal/repo"
	"reqline/internal/status"
)

type App struct {
	Config   config.Config
	DB       *sql.DB
	Dialect  db.Dialect
	Registry *status.Registry
	Engine   engine.Engine
	Blob     blob.Store
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// Open connects to the database, applies migrations, seeds the status
// registry and builds the engine.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	conn, dialect, err := db.Open(db.Config{Driver: cfg.Database.Driver, Workspace: cfg.Database.Workspace, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, DB: conn, Dialect: dialect, Log: log, Metrics: metrics.New()}
	if err := a.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if err := a.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	applied, err := migrate.Migrate(ctx, a.DB, a.Dialect)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	r := repo.New(a.DB, a.Dialect)
	seeded, err := SeedStatuses(ctx, r, a.Config.Statuses.File)
	if err != nil {
		return err
	}
	if a.Registry, err = LoadRegistry(ctx, r); err != nil {
		return err
	}
	a.Engine = engine.New(a.DB, a.Dialect, a.Registry)
	a.Engine.Log = a.Log.With().Str("component", "engine").Logger()
	a.Engine.Metrics = a.Metrics
	if a.Blob, err = blob.Open(ctx, a.Config.Blob); err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	blobDriver := string(blob.DriverNone)
	if a.Blob != nil {
		blobDriver = string(a.Blob.Driver())
	}
	a.Log.Info().
		Str("driver", string(a.Dialect)).
		Int("migrations_applied", applied).
		Int("statuses", seeded).
		Str("blob", blobDriver).
		Msg("workspace ready")
	return nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// SeedStatuses upserts the registry rows from file, or the built-in seed, in
// one transaction and returns how many rows were written.
func SeedStatuses(ctx context.Context, r repo.Repo, file string) (int, error) {
	rows, err := status.LoadSeed(file)
	if err != nil {
		return 0, fmt.Errorf("load status seed: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	rt := r.WithTx(tx)
	for _, s := range rows {
		if err := rt.UpsertStatus(ctx, s); err != nil {
			return 0, fmt.Errorf("seed status %s: %w", s.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// LoadRegistry reads the stored statuses into an in-memory registry.
func LoadRegistry(ctx context.Context, r repo.Repo) (*status.Registry, error) {
	rows, err := r.ListStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("status registry is empty")
	}
	return status.NewRegistry(rows...), nil
}
