package database

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// Database holds alert history and the alert outbox
type Database struct {
	DB     *sql.DB
	logger *zap.Logger
}

func New(ctx context.Context, dsn string, logger *zap.Logger) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return NewFromDB(db, logger), nil
}

func NewFromDB(db *sql.DB, logger *zap.Logger) *Database {
	return &Database{DB: db, logger: logger.Named("database")}
}

// Init creates the required tables if they don't exist
func (d *Database) Init(ctx context.Context) error {
	createTables := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		node TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL,
		area INTEGER NOT NULL,
		bbox JSONB NOT NULL,
		detection_count INTEGER NOT NULL,
		snapshot_path TEXT NOT NULL,
		snapshot_url TEXT NOT NULL DEFAULT '',
		channel_results JSONB NOT NULL,
		delivered INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_outbox (
		id TEXT PRIMARY KEY,
		alert_id TEXT NOT NULL REFERENCES alerts(id),
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS alert_outbox_pending_idx ON alert_outbox (created_at) WHERE processed_at IS NULL;
	`

	_, err := d.DB.ExecContext(ctx, createTables)
	return err
}

func (d *Database) Close() error {
	return d.DB.Close()
}
