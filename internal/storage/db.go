package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQL drivers supported by DB.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongo    = "mongo"
)

// DB wraps a SQL connection to one of the supported drivers.
type DB struct {
	conn   *sqlx.DB
	driver string
}

// OpenSQLite opens (or creates) the SQLite file at path.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return OpenSQL(ctx, DriverSQLite, path+"?_journal_mode=WAL&_busy_timeout=5000")
}

// OpenSQL connects with the given driver and DSN and runs the migrations.
func OpenSQL(ctx context.Context, driver, dsn string) (*DB, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite only supports one writer; a single connection avoids SQLITE_BUSY
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Driver() string {
	return db.driver
}

// Conn returns the underlying connection.
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

func (db *DB) migrate(ctx context.Context) error {
	var migrations []string
	switch db.driver {
	case DriverSQLite:
		migrations = sqliteMigrations
	case DriverPostgres:
		migrations = postgresMigrations
	case DriverMySQL:
		migrations = mysqlMigrations
	default:
		return fmt.Errorf("unsupported driver %q", db.driver)
	}

	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			// ALTER TABLE fails if the column already exists
			if strings.Contains(m, "ALTER TABLE") && isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		user_id TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		sections_json TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_user ON pages(user_id, updated_at)`,
	// Added with publishing
	`ALTER TABLE pages ADD COLUMN published_at DATETIME`,
	`CREATE TABLE IF NOT EXISTS page_versions (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		sections_json TEXT NOT NULL DEFAULT '[]',
		created_by TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_page_versions_page ON page_versions(page_id, version)`,
	`CREATE TABLE IF NOT EXISTS mcp_approvals (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		user_id TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		sections_json TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_user ON pages(user_id, updated_at)`,
	`ALTER TABLE pages ADD COLUMN IF NOT EXISTS published_at TIMESTAMPTZ`,
	`CREATE TABLE IF NOT EXISTS page_versions (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		sections_json TEXT NOT NULL DEFAULT '[]',
		created_by TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_page_versions_page ON page_versions(page_id, version)`,
	`CREATE TABLE IF NOT EXISTS mcp_approvals (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS; indexes are declared inline.
var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL DEFAULT '',
		slug VARCHAR(255) NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'draft',
		user_id VARCHAR(64) NOT NULL DEFAULT '',
		template_id VARCHAR(64) NOT NULL DEFAULT '',
		sections_json LONGTEXT NOT NULL,
		version INT NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_pages_user (user_id, updated_at)
	) CHARACTER SET utf8mb4`,
	`ALTER TABLE pages ADD COLUMN published_at DATETIME(6) NULL`,
	`CREATE TABLE IF NOT EXISTS page_versions (
		id VARCHAR(64) PRIMARY KEY,
		page_id VARCHAR(64) NOT NULL,
		version INT NOT NULL,
		sections_json LONGTEXT NOT NULL,
		created_by VARCHAR(64) NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_page_versions_page (page_id, version)
	) CHARACTER SET utf8mb4`,
	`CREATE TABLE IF NOT EXISTS mcp_approvals (
		id VARCHAR(64) PRIMARY KEY,
		tool VARCHAR(64) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		metadata TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) CHARACTER SET utf8mb4`,
}
