package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// DBExecutor defines the database operations needed by repositories.
// Both *sqlx.DB and *sqlx.Tx implement these methods.
type DBExecutor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// NewPostgresDB opens a connection pool and verifies it with a ping
func NewPostgresDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresStore implements Store on top of sqlx
type PostgresStore struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// NewPostgresStore initializes a new store
func NewPostgresStore(db *sqlx.DB, log *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

// Repositories returns repositories bound to the connection pool
func (s *PostgresStore) Repositories() Repositories {
	return newPostgresRepositories(s.db)
}

// WithinTx runs fn in a READ COMMITTED transaction. Mutations rely on
// SELECT ... FOR UPDATE row locks and the version check in Update.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(r Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Warnf("Failed to roll back transaction: %v", err)
		}
	}()

	if err := fn(newPostgresRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func newPostgresRepositories(q DBExecutor) Repositories {
	return Repositories{
		Cards:     &cardRepository{q: q},
		Users:     &userRepository{q: q},
		Transfers: &transferRepository{q: q},
	}
}

func pqErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// Migrate creates the schema if it does not exist yet
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		full_name     TEXT NOT NULL DEFAULT '',
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          VARCHAR(16) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id               UUID PRIMARY KEY,
		owner_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		encrypted_number TEXT NOT NULL,
		number_digest    TEXT NOT NULL UNIQUE,
		expiration_date  DATE NOT NULL,
		status           VARCHAR(16) NOT NULL,
		balance          NUMERIC(14, 2) NOT NULL CHECK (balance >= 0),
		created_at       TIMESTAMPTZ NOT NULL,
		version          BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_owner_id ON cards (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_expiration_date ON cards (expiration_date)`,
	`CREATE TABLE IF NOT EXISTS card_transfers (
		id           UUID PRIMARY KEY,
		from_card_id UUID NOT NULL,
		to_card_id   UUID NOT NULL,
		amount       NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_card_transfers_from ON card_transfers (from_card_id)`,
	`CREATE INDEX IF NOT EXISTS idx_card_transfers_to ON card_transfers (to_card_id)`,
}
