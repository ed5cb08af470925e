package storage

import (
	"context"
	"fmt"
	"strings"

	"pagebuilder/internal/domain"
)

// Config selects and configures the persistence backend.
type Config struct {
	Driver   string // sqlite (default), postgres, mysql, mongo
	Path     string // sqlite file
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	// URI is the MongoDB connection string.
	URI string
	// MaxVersionsPerPage bounds the stored published versions of a page.
	MaxVersionsPerPage int
}

// Stores bundles the stores of one backend.
type Stores struct {
	Pages     domain.PageStore
	Versions  domain.VersionStore
	Approvals ApprovalStore
	// DB is set for the SQL drivers.
	DB *DB
}

// Close releases the backend connection.
func (s *Stores) Close() error {
	return s.Pages.Close()
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	switch cfg.Driver {
	case DriverMongo:
		m, err := OpenMongo(ctx, cfg.URI, cfg.Database, cfg.MaxVersionsPerPage)
		if err != nil {
			return nil, err
		}
		return &Stores{Pages: m, Versions: m, Approvals: m}, nil
	case "", DriverSQLite, DriverPostgres, DriverMySQL:
		db, err := openSQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Pages:     NewSQLPageStore(db),
			Versions:  NewSQLVersionStore(db, cfg.MaxVersionsPerPage),
			Approvals: NewSQLApprovalStore(db),
			DB:        db,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func openSQL(ctx context.Context, cfg Config) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return OpenSQL(ctx, DriverPostgres, PostgresDSN(cfg))
	case DriverMySQL:
		return OpenSQL(ctx, DriverMySQL, MySQLDSN(cfg))
	default:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite storage needs a path")
		}
		return OpenSQLite(ctx, cfg.Path)
	}
}

// PostgresDSN builds a lib/pq connection string.
func PostgresDSN(cfg Config) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.Username, cfg.Password, cfg.Database, sslMode,
	)
}

// MySQLDSN builds a go-sql-driver/mysql DSN.
func MySQLDSN(cfg Config) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database,
	)
	if strings.EqualFold(cfg.SSLMode, "require") {
		dsn += "&tls=true"
	}
	return dsn
}
