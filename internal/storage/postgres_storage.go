package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	appErr "github.com/samims/ctxrelay/internal/errors"
)

// SQLSTATE codes that mean the database cannot take more data.
const (
	pgDiskFull          = "53100"
	pgOutOfMemory       = "53200"
	pgUniqueViolation   = "23505"
	maxInsertCollisions = 3
)

// PgxPool is the part of *pgxpool.Pool the store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var _ ContextStore = (*PostgresStorage)(nil)

type PostgresStorage struct {
	db    PgxPool
	newID func() string
}

func NewPostgresStorage(pool PgxPool) *PostgresStorage {
	return &PostgresStorage{db: pool, newID: uuid.NewString}
}

// Migrate creates the contexts table if it does not exist.
func (ps *PostgresStorage) Migrate(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS contexts (
			id         TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := ps.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate contexts table: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) Put(ctx context.Context, payload string) (string, error) {
	const query = `
		INSERT INTO contexts (id, payload, created_at)
		VALUES ($1, $2, $3)
	`

	for attempt := 0; attempt < maxInsertCollisions; attempt++ {
		id := ps.newID()
		_, err := ps.db.Exec(ctx, query, id, payload, time.Now().UTC())
		if err == nil {
			return id, nil
		}
		retry, mapped := classifyInsertError(err)
		if retry {
			continue
		}
		return "", mapped
	}
	return "", appErr.NewStorage("failed to allocate a unique context id")
}

// classifyInsertError maps a failed INSERT. retry is true on an id collision.
func classifyInsertError(err error) (retry bool, mapped error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return true, nil
		case pgDiskFull, pgOutOfMemory:
			return false, appErr.NewStorageFull("postgres: %s", pgErr.Message)
		}
	}
	return false, appErr.NewStorage("failed to save context: %v", err)
}

func (ps *PostgresStorage) Get(ctx context.Context, id string) (string, error) {
	const query = `
		SELECT payload
		FROM contexts
		WHERE id = $1
	`

	var payload string
	err := ps.db.QueryRow(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", appErr.NewNotFound("context %s", id)
		}
		return "", appErr.NewStorage("find by id failed: %v", err)
	}
	return payload, nil
}

func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.db.Ping(ctx)
}

func (ps *PostgresStorage) Close() error {
	ps.db.Close()
	return nil
}
