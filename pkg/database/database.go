package database

import (
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type DB struct {
	*sql.DB
	Driver string
}

// Connect opens the database, tunes the pool for the driver and applies migrations.
func Connect(driver, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// one writer; transactions serialize on this connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
		}
	}

	if err := migrate(db, driver); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connected successfully", "driver", driver)

	return &DB{DB: db, Driver: driver}, nil
}

func migrate(db *sql.DB, driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

var placeholder = regexp.MustCompile(`\$\d+`)

// Rebind rewrites $N placeholders for drivers that expect '?'.
func (db *DB) Rebind(query string) string {
	if db.Driver == DriverSQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

func (db *DB) Close() error {
	return db.DB.Close()
}
