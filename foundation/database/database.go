// Package database provides support for access to the stop database.
package database

import (
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Config is the required properties to use the database.
// When Path is set the database is a local sqlite file and the
// postgres fields are ignored.
type Config struct {
	Path       string
	User       string
	Password   string
	Host       string
	Name       string
	DisableTLS bool
}

// Open knows how to open a database connection based on the configuration.
func Open(cfg Config) (*sqlx.DB, error) {
	if cfg.Path != "" {
		return openSqlite(cfg.Path)
	}
	return openPostgres(cfg)
}

func openSqlite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database at %s: %w", path, err)
	}
	return db, nil
}

func openPostgres(cfg Config) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}
	return sqlx.Connect("pgx", u.String())
}

// CreateStopTables creates the point and connection tables if they do not
// already exist. Used by tests and by first-run imports against an empty
// sqlite file.
func CreateStopTables(db *sqlx.DB) error {
	statements := []string{
		`create table if not exists point (
			point_id text primary key,
			latitude real not null,
			longitude real not null,
			name text not null,
			mode text not null)`,
		`create table if not exists connection (
			origin_point_id text not null,
			destination_point_id text not null,
			line_id text not null,
			direction text not null,
			primary key (origin_point_id, destination_point_id, line_id, direction))`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("creating stop tables: %w", err)
		}
	}
	return nil
}
