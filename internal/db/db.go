package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	Conn   *sql.DB
	Driver string
}

// NewDatabase opens a pool for driver "pgx" (postgres) or "sqlite3".
func NewDatabase(driver, dsn string) (*Database, error) {
	switch driver {
	case "pgx", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	if driver == "sqlite3" {
		// sqlite allows one writer at a time.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}
	return &Database{Conn: conn, Driver: driver}, nil
}

func (d *Database) AutoMigrate() error {
	var queries []string
	switch d.Driver {
	case "pgx":
		queries = []string{
			`CREATE TABLE IF NOT EXISTS room_archives (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(128) NOT NULL,
            language VARCHAR(32) NOT NULL,
            code TEXT NOT NULL,
            whiteboard JSONB NOT NULL DEFAULT '[]',
            participants INT NOT NULL DEFAULT 0,
            started_at TIMESTAMPTZ NOT NULL,
            ended_at TIMESTAMPTZ NOT NULL
        )`,
			`CREATE INDEX IF NOT EXISTS idx_room_archives_ended_at ON room_archives (ended_at DESC)`,
		}
	case "sqlite3":
		queries = []string{
			`CREATE TABLE IF NOT EXISTS room_archives (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id TEXT NOT NULL,
            language TEXT NOT NULL,
            code TEXT NOT NULL,
            whiteboard TEXT NOT NULL DEFAULT '[]',
            participants INTEGER NOT NULL DEFAULT 0,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP NOT NULL
        )`,
			`CREATE INDEX IF NOT EXISTS idx_room_archives_ended_at ON room_archives (ended_at DESC)`,
		}
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}
