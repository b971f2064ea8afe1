package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// PersistenceConfig satisfies the go-persistence-bun client configuration.
type PersistenceConfig struct {
	Driver         string
	Server         string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-form-integrations"
	}
	return c.OtelIdentifier
}

// MigrationDialect names the migration tree matching the configured driver.
func (c PersistenceConfig) MigrationDialect() string {
	if normalizeDriver(c.Driver) == DriverSQLite {
		return "sqlite"
	}
	return "postgres"
}

// Open opens the database for the configured driver and wraps it in a
// persistence client using the matching bun dialect.
func Open(cfg PersistenceConfig) (*persistence.Client, error) {
	driver := normalizeDriver(cfg.Driver)
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, fmt.Errorf("sqlstore: database server dsn is required")
	}
	sqlDB, err := sql.Open(driver, cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	cfg.Driver = driver
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqlitedialect.New(), nil
	case DriverPostgres:
		return pgdialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

func normalizeDriver(driver string) string {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	default:
		return strings.TrimSpace(strings.ToLower(driver))
	}
}

// Stores bundles the bun-backed stores over one database.
type Stores struct {
	db           *bun.DB
	events       *EventStore
	formSettings *FormSettingsStore
}

func NewStoresFromPersistence(client *persistence.Client) (*Stores, error) {
	return NewStores(client)
}

func NewStoresFromDB(db *bun.DB) (*Stores, error) {
	return NewStores(db)
}

// NewStores accepts a *bun.DB or anything exposing DB() *bun.DB.
func NewStores(persistenceClient any) (*Stores, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	events, err := NewEventStore(db)
	if err != nil {
		return nil, err
	}
	formSettings, err := NewFormSettingsStore(db)
	if err != nil {
		return nil, err
	}
	return &Stores{db: db, events: events, formSettings: formSettings}, nil
}

func (s *Stores) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Stores) EventStore() *EventStore {
	if s == nil {
		return nil
	}
	return s.events
}

func (s *Stores) FormSettingsStore() *FormSettingsStore {
	if s == nil {
		return nil
	}
	return s.formSettings
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: persistence client is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
