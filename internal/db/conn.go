package db

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Config mirrors internal/config's database section.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxOpenConns int
}

func (c Config) dsn() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, sslmode)
}

// Open connects via pgx's stdlib driver (the teacher's own preference
// for a concrete, well-supported SQL driver over a hand-rolled client),
// wrapped in sqlx for the Get/Select convenience helpers the repositories
// use.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	sqlDB, err := sqlx.ConnectContext(ctx, "pgx", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return sqlDB, nil
}
