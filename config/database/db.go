package database

import (
	"context"
	"database/sql"
	"time"

	"collabdocs/pkg/logger"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                    TEXT PRIMARY KEY,
	title                 TEXT NOT NULL DEFAULT 'New Document',
	content               TEXT NOT NULL DEFAULT '',
	owner_email           TEXT NOT NULL,
	owner_name            TEXT NOT NULL DEFAULT '',
	collaborators         TEXT[] NOT NULL DEFAULT '{}',
	last_updated_by_email TEXT NOT NULL DEFAULT '',
	last_updated_by_name  TEXT NOT NULL DEFAULT '',
	last_updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_last_updated_at_idx ON documents (last_updated_at DESC);
`

// Connect opens the database and pings it with retries. It exits the process
// when the database stays unreachable.
func Connect(databaseURL string) *sql.DB {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open database connection: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db
		}
		logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	logger.Sugar.Fatalf("Could not connect to database after retries: %v", err)
	return nil
}

// EnsureSchema creates the documents table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
