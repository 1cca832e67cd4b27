package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
)

// TenantHeader selects the tenant schema for a request.
const TenantHeader = "X-Tenant-ID"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaFor returns the schema holding a tenant's records.
func SchemaFor(tenantID string) string {
	return "tenant_" + tenantID
}

// ValidTenantID reports whether id is safe to embed in a schema name.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// TenantMiddleware pins a pooled connection to the request's tenant schema and
// stores both in the request context.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)
			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			var handlerErr error
			err := WithTenant(c.Request().Context(), pool, tenantID, func(ctx context.Context) error {
				c.SetRequest(c.Request().WithContext(ctx))
				c.Set("tenant_id", tenantID)
				handlerErr = next(c)
				return nil
			})
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "tenant resolution failed")
			}
			return handlerErr
		}
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid := c.Request().Header.Get(TenantHeader); tid != "" {
		return tid
	}
	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}
	return defaultTenant
}

// WithTenant acquires a connection, points its search_path at the tenant
// schema, and runs fn with the connection and tenant id in the context. The
// connection is released when fn returns.
func WithTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaFor(tenantID))); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return fn(ctx)
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantFromContext retrieves the tenant ID from context.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// CreateTenantSchema creates a tenant schema and, when migrationsDir is set,
// applies all migrations to it.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrationsDir string) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	schema := SchemaFor(tenantID)
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	if migrationsDir == "" {
		return nil
	}
	if _, err := NewMigrator(pool, migrationsDir).Up(ctx, schema); err != nil {
		return fmt.Errorf("run migrations for %s: %w", schema, err)
	}
	return nil
}
