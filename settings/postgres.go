package settings

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql, used by goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps options in the options table.
type PostgresStore struct {
	db     Querier
	option string
}

// NewPostgresStore creates a store on db using the default option name.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db, option: OptionNoCacheMenus}
}

// LoadExcluded reads the option row. A missing row is the empty set.
func (s *PostgresStore) LoadExcluded(ctx context.Context) (ExcludedSet, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM options WHERE name = $1`, s.option).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExcludedSet{}, nil
	}
	if err != nil {
		return ExcludedSet{}, fmt.Errorf("%w: load %s: %w", ErrStoreUnavailable, s.option, err)
	}

	var set ExcludedSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return ExcludedSet{}, fmt.Errorf("settings: decode %s: %w", s.option, err)
	}
	return set, nil
}

// SaveExcluded upserts the option row.
func (s *PostgresStore) SaveExcluded(ctx context.Context, set ExcludedSet) error {
	value, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("settings: encode %s: %w", s.option, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO options (name, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		s.option, value)
	if err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStoreUnavailable, s.option, err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// NewPool opens a pgx pool and verifies it with a ping.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrations)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
