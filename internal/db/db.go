package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/roofline/roofline-backend/internal/config"
)

// Open connects to Postgres and verifies the connection. Callers own
// the handle and pass it into repositories explicitly.
func Open(cfg *config.Config) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return conn, nil
}
