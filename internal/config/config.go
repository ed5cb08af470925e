// Package config reads and writes the pagebuilder TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"pagebuilder/internal/storage"
)

// Config represents the main configuration for pagebuilder.
type Config struct {
	DataDir   string          `toml:"data_dir"`
	UserID    string          `toml:"user_id"`
	History   HistoryConfig   `toml:"history"`
	Storage   StorageConfig   `toml:"storage"`
	Mongo     MongoConfig     `toml:"mongo"`
	Realtime  RealtimeConfig  `toml:"realtime"`
	Autosave  AutosaveConfig  `toml:"autosave"`
	Collab    CollabConfig    `toml:"collab"`
	Templates TemplatesConfig `toml:"templates"`
	Versions  VersionsConfig  `toml:"versions"`
	MCP       MCPConfig       `toml:"mcp"`
}

type HistoryConfig struct {
	MaxDepth int `toml:"max_depth"`
}

// StorageConfig selects the page store.
// The Driver field determines which other fields are relevant.
type StorageConfig struct {
	Driver   string `toml:"driver"`         // "sqlite", "postgres", "mysql" or "mongo"
	Path     string `toml:"path"`           // only used for driver=sqlite
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	Database string `toml:"database,omitempty"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
	SSLMode  string `toml:"ssl_mode,omitempty"`
}

// MongoConfig is only used for driver=mongo.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database,omitempty"`
}

// RealtimeConfig selects the collaboration channel.
type RealtimeConfig struct {
	Backend     string   `toml:"backend"` // "memory" or "redis"
	ListenAddr  string   `toml:"listen_addr"`
	RedisAddr   string   `toml:"redis_addr,omitempty"`
	RedisPrefix string   `toml:"redis_prefix,omitempty"`
	PresenceTTL Duration `toml:"presence_ttl"`
}

type AutosaveConfig struct {
	Delay Duration `toml:"delay"`
}

type CollabConfig struct {
	IdleTimeout   Duration `toml:"idle_timeout"`
	SweepSchedule string   `toml:"sweep_schedule"`
	// PollInterval is how often the store is checked for pages changed by
	// another process.
	PollInterval Duration `toml:"poll_interval"`
}

type TemplatesConfig struct {
	Dir string `toml:"dir"`
}

type VersionsConfig struct {
	MaxPerPage int `toml:"max_per_page"`
}

type MCPConfig struct {
	RequireApproval bool     `toml:"require_approval"`
	ApprovalTimeout Duration `toml:"approval_timeout"`
}

// Duration is a time.Duration written as "2s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists, rooted at
// dataDir.
func Default(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		UserID:  "local",
		History: HistoryConfig{MaxDepth: 50},
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
			Path:   filepath.Join(dataDir, "pagebuilder.db"),
		},
		Realtime: RealtimeConfig{
			Backend:     "memory",
			ListenAddr:  "127.0.0.1:7420",
			RedisPrefix: "pagebuilder:",
			PresenceTTL: Duration{2 * time.Minute},
		},
		Autosave: AutosaveConfig{Delay: Duration{2 * time.Second}},
		Collab: CollabConfig{
			IdleTimeout:   Duration{5 * time.Minute},
			SweepSchedule: "@every 1m",
			PollInterval:  Duration{2 * time.Second},
		},
		Templates: TemplatesConfig{Dir: filepath.Join(dataDir, "templates")},
		Versions:  VersionsConfig{MaxPerPage: storage.DefaultMaxVersions},
		MCP: MCPConfig{
			RequireApproval: true,
			ApprovalTimeout: Duration{2 * time.Minute},
		},
	}
}

// DefaultDataDir is ~/.local/share/pagebuilder.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagebuilder"
	}
	return filepath.Join(home, ".local", "share", "pagebuilder")
}

// DefaultPath is the config file inside the default data dir.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// StoreConfig converts the storage sections into a storage.Config.
func (c *Config) StoreConfig() storage.Config {
	return storage.Config{
		Driver:             c.Storage.Driver,
		Path:               c.Storage.Path,
		Host:               c.Storage.Host,
		Port:               c.Storage.Port,
		Database:           c.databaseName(),
		Username:           c.Storage.Username,
		Password:           c.Storage.Password,
		SSLMode:            c.Storage.SSLMode,
		URI:                c.Mongo.URI,
		MaxVersionsPerPage: c.Versions.MaxPerPage,
	}
}

func (c *Config) databaseName() string {
	if c.Storage.Driver == storage.DriverMongo {
		return c.Mongo.Database
	}
	return c.Storage.Database
}

// Validate reports settings the app cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "", storage.DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case storage.DriverPostgres, storage.DriverMySQL:
		if c.Storage.Host == "" || c.Storage.Database == "" {
			return fmt.Errorf("storage.host and storage.database are required for %s", c.Storage.Driver)
		}
	case storage.DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Realtime.Backend {
	case "", "memory":
	case "redis":
		if c.Realtime.RedisAddr == "" {
			return fmt.Errorf("realtime.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown realtime.backend %q", c.Realtime.Backend)
	}
	if c.History.MaxDepth < 0 {
		return fmt.Errorf("history.max_depth must not be negative")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Missing keys keep the
// defaults rooted at DefaultDataDir.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default(DefaultDataDir())
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path, or returns the defaults when it does not exist.
func Load(path string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return Default(DefaultDataDir()), nil
	}
	return nil, err
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
