package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"campushub/internal/config"
	"campushub/internal/middleware"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var dbNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EnsureDatabase connects to the maintenance database and creates cfg.DBName when it is missing.
func EnsureDatabase(ctx context.Context, cfg *config.Config) error {
	if !dbNamePattern.MatchString(cfg.DBName) {
		return fmt.Errorf("invalid database name %q", cfg.DBName)
	}

	conn, err := sql.Open("pgx", DSN(cfg, "postgres"))
	if err != nil {
		return fmt.Errorf("open maintenance connection: %w", err)
	}
	defer conn.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping maintenance database: %w", err)
	}

	created, err := createIfMissing(ctx, conn, cfg.DBName)
	if err != nil {
		return err
	}
	if created {
		middleware.Logger.Info("Created database", slog.String("db", cfg.DBName))
	}
	return nil
}

func createIfMissing(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	if err := conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check database %s: %w", name, err)
	}
	if exists {
		return false, nil
	}
	// Identifiers cannot be bound; name is validated against dbNamePattern.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, name)); err != nil {
		return false, fmt.Errorf("create database %s: %w", name, err)
	}
	return true, nil
}
