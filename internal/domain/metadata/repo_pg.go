package metadata

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/mchms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ pool *pgxpool.Pool }

// NewStorePG returns a Store backed by the program and concept tables.
func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (r *storePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *storePG) ProgramByName(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM program WHERE name = $1 AND NOT retired`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

func (r *storePG) ConceptByName(ctx context.Context, name string) (string, error) {
	var code string
	err := r.conn(ctx).QueryRow(ctx, `SELECT code FROM concept WHERE name = $1 AND NOT retired`, name).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return code, err
}
