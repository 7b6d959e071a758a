package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env        string        `yaml:"env"`
	BaseURL    string        `yaml:"base_url"`
	URLTTL     time.Duration `yaml:"url_ttl"`
	DocsPath   string        `yaml:"docs_path"`
	ShortCode  ShortCode     `yaml:"short_code"`
	Storage    Storage       `yaml:"storage"`
	Cleanup    Cleanup       `yaml:"cleanup"`
	Log        Log           `yaml:"log"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	SQLite     SQLite `yaml:"sqlite"`
	Redis      Redis  `yaml:"redis"`
}

type ShortCode struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type Storage struct {
	Driver string `yaml:"driver"`
}

// Cleanup configures the background sweep of expired URLs. A zero interval disables it.
type Cleanup struct {
	Interval time.Duration `yaml:"interval"`
}

type Log struct {
	Level string `yaml:"level"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type SQLite struct {
	Path string `yaml:"path"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

var defaultRedis = Redis{
	Addr:     "localhost:6379",
	CacheTTL: 10 * time.Minute,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.URLTTL = 120 * time.Minute
	cfg.DocsPath = "./docs/swagger.yml"
	cfg.ShortCode.MaxAttempts = 10
	cfg.Storage.Driver = StoragePostgres
	cfg.Cleanup.Interval = 10 * time.Minute
	cfg.Log.Level = "info"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.SQLite.Path = "./data/shortener.db"
	cfg.Redis = defaultRedis
}

func (cfg *Config) validate() error {
	switch cfg.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, cfg.Env)
	}

	switch cfg.Storage.Driver {
	case StoragePostgres, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, cfg.Storage.Driver)
	}

	if cfg.URLTTL <= 0 {
		return fmt.Errorf("%w: url_ttl must be positive", ErrInvalidConfig)
	}

	if cfg.ShortCode.MaxAttempts <= 0 {
		return fmt.Errorf("%w: short_code.max_attempts must be positive", ErrInvalidConfig)
	}

	if cfg.Cleanup.Interval < 0 {
		return fmt.Errorf("%w: cleanup.interval must not be negative", ErrInvalidConfig)
	}

	return nil
}
