// Package store persists smart label rules, synced messages, thread labels and
// cached classifications in a SQL database.
package store

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Dialect identifies a supported database
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// driverName maps a dialect to its database/sql driver
func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported store driver: %s", d)
	}
}

// SQLStore is the SQL implementation of the rule, thread, label, message
// and cache ports
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
}

// Open connects to the database and creates the schema if needed
func Open(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*SQLStore, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer avoids SQLITE_BUSY and keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	}

	s := New(db, dialect, logger)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Opened smart label store", zap.String("driver", string(dialect)))
	return s, nil
}

// New wraps an existing connection. The schema is not created.
func New(db *sqlx.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     time.Now,
	}
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func schema(d Dialect) []string {
	boolType := "BOOLEAN"
	if d == DialectMySQL {
		boolType = "TINYINT(1)"
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS smart_label_rules (
			rule_id VARCHAR(255) NOT NULL PRIMARY KEY,
			account_id VARCHAR(255) NOT NULL,
			label_id VARCHAR(255) NOT NULL,
			ai_description TEXT,
			criteria TEXT,
			is_enabled ` + boolType + ` NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			account_id VARCHAR(255) NOT NULL,
			message_id VARCHAR(255) NOT NULL,
			thread_id VARCHAR(255) NOT NULL,
			from_address VARCHAR(320) NOT NULL,
			from_name TEXT,
			to_addresses TEXT,
			subject TEXT,
			snippet TEXT,
			body_text TEXT,
			body_html TEXT,
			has_attachment ` + boolType + ` NOT NULL,
			received_at BIGINT NOT NULL,
			PRIMARY KEY (account_id, message_id)
		)`,
		`CREATE TABLE IF NOT EXISTS thread_labels (
			account_id VARCHAR(255) NOT NULL,
			thread_id VARCHAR(255) NOT NULL,
			label_id VARCHAR(255) NOT NULL,
			PRIMARY KEY (account_id, thread_id, label_id)
		)`,
		`CREATE TABLE IF NOT EXISTS classification_cache (
			cache_key VARCHAR(512) NOT NULL PRIMARY KEY,
			label_ids TEXT,
			expires_at BIGINT NOT NULL
		)`,
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS; the primary keys cover its lookups
	if d == DialectMySQL {
		return tables
	}
	return append(tables,
		`CREATE INDEX IF NOT EXISTS idx_rules_account ON smart_label_rules (account_id, sort_order)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages (account_id, thread_id, received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_expires ON classification_cache (expires_at)`,
	)
}

// insertIgnore renders an insert that silently skips existing keys
func (s *SQLStore) insertIgnore(table, columns, values string) string {
	switch s.dialect {
	case DialectMySQL:
		return "INSERT IGNORE INTO " + table + " (" + columns + ") VALUES (" + values + ")"
	case DialectPostgres:
		return "INSERT INTO " + table + " (" + columns + ") VALUES (" + values + ") ON CONFLICT DO NOTHING"
	default:
		return "INSERT OR IGNORE INTO " + table + " (" + columns + ") VALUES (" + values + ")"
	}
}
