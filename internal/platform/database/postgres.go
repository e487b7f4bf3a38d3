package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ibarwick/config-log/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// Connect opens a connection to the configured target database. The worker
// runs one transaction at a time, so the pool is kept small.
func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DBConnStr())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database %q: %w", cfg.Task.Database, err)
	}

	log.Printf("INFO: Connected to PostgreSQL database %q", cfg.Task.Database)
	return db, nil
}

func Close(db *sql.DB) {
	if db != nil {
		db.Close()
		log.Println("INFO: Database connection closed.")
	}
}
