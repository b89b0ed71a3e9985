/*
Package store is the relational data-store collaborator: room and
membership lookups, message CRUD with pagination, and read marks. The
realtime plane consults it for admission checks; the HTTP handlers apply
durable mutations here before publishing events.
*/
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"chathub/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Sentinel errors mapped by handlers onto API error codes.
var (
	ErrNotFound            = errors.New("store: not found")
	ErrAlreadyMember       = errors.New("store: already a member")
	ErrNotMember           = errors.New("store: not a member")
	ErrCreatorCannotLeave  = errors.New("store: room creator cannot leave")
	ErrNotOwner            = errors.New("store: not the message owner")
	ErrEditWindowExpired   = errors.New("store: edit window expired")
	ErrDeleteWindowExpired = errors.New("store: delete window expired")
)

const (
	// EditWindow is how long a text message stays editable after creation.
	EditWindow = 15 * time.Minute

	// DeleteWindow is how long a message stays deletable after creation.
	DeleteWindow = 24 * time.Hour
)

// Store wraps the PostgreSQL connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New builds a Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "store").Logger(),
	}
}

// NewPool initializes the PostgreSQL connection pool and applies pending
// migrations.
func NewPool(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// runMigrations applies all pending migrations from the embedded filesystem.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
