package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	_ "modernc.org/sqlite"
)

// NewSQLiteDB opens the single-file store at cfg.SQLitePath.
func NewSQLiteDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.SQLitePath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the attempt store serialises its own updates anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	log.Info().Str("path", cfg.SQLitePath).Msg("SQLite opened")
	return db, nil
}
