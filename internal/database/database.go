// Package database opens the traced PostgreSQL pool used by the users
// repository.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"userrepo/internal/config"
)

const pingTimeout = 5 * time.Second

// openDB is replaced in tests with a sqlmock-backed opener.
var openDB = func(connString string) (*sql.DB, error) {
	return otelsql.Open("pgx", connString,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
}

// ConnString resolves the connection string: DATABASE_URL as given, or a
// postgres:// URL assembled from the individual settings.
func ConnString(c config.DatabaseConfig) (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"host", c.Host}, {"port", c.Port}, {"user", c.User}, {"name", c.Name},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("database config incomplete: missing %s", strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(c.User),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   c.Name,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// Open connects through the pgx driver wrapped by otelsql, applies the pool
// limits and pings within pingTimeout. The returned pool is ready for use.
func Open(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	connString, err := ConnString(c)
	if err != nil {
		return nil, err
	}
	if _, err := pgx.ParseConfig(connString); err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	db, err := openDB(connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	configurePool(db, c)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Zero values leave the database/sql defaults in place.
func configurePool(db *sql.DB, c config.DatabaseConfig) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}
}
