// Package config loads the service configuration from a YAML file with
// environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	minShortCodeLength = 6
	maxShortCodeLength = 10
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env        string     `yaml:"env"`
	BaseURL    string     `yaml:"base_url"`
	ShortCode  ShortCode  `yaml:"short_code"`
	Link       Link       `yaml:"link"`
	Log        Log        `yaml:"log"`
	Auth       Auth       `yaml:"auth"`
	Accounting Accounting `yaml:"accounting"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Redis      Redis      `yaml:"redis"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
}

type ShortCode struct {
	Length      int `yaml:"length"`
	MaxAttempts int `yaml:"max_attempts"`
}

type Link struct {
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

type Log struct {
	Level   string `yaml:"level"`
	JSON    bool   `yaml:"json"`
	Concise bool   `yaml:"concise"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type Accounting struct {
	QueueSize     int           `yaml:"queue_size"`
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// RateLimit bounds requests per client IP on the public routes. A zero
// Requests value disables limiting.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
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
	URL             string        `yaml:"url"`
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

// DSN returns URL when set, otherwise a DSN built from the individual fields.
func (p *Postgres) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.DB,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}

	return u.String()
}

// Redis configures the shared rate limiter. An empty Addr selects the
// in-process limiter.
type Redis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	cfg := Default()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

// Default returns the configuration used for every setting a file omits.
func Default() Config {
	var cfg Config
	setDefaults(&cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.ShortCode = ShortCode{Length: 7, MaxAttempts: 5}
	cfg.Link = Link{OperationTimeout: 3 * time.Second}
	cfg.Log = Log{Level: "info", Concise: true}
	cfg.Accounting = Accounting{
		QueueSize:     4096,
		Workers:       2,
		BatchSize:     100,
		FlushInterval: time.Second,
		WriteTimeout:  5 * time.Second,
	}
	cfg.RateLimit = RateLimit{Requests: 100, Window: time.Minute, Burst: 20}
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = Redis{KeyPrefix: "link-shortener"}
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.Postgres.URL = v
	}
	if v, ok := os.LookupEnv("POSTGRES_PASSWORD"); ok {
		cfg.Postgres.Password = v
	}
	if v, ok := os.LookupEnv("AUTH_JWT_SECRET"); ok {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
}

// Validate reports the first setting the service cannot start with.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base_url must be an absolute URL", ErrInvalidConfig)
	}

	if c.ShortCode.Length < minShortCodeLength || c.ShortCode.Length > maxShortCodeLength {
		return fmt.Errorf("%w: short_code.length must be within [%d, %d]",
			ErrInvalidConfig, minShortCodeLength, maxShortCodeLength)
	}
	if c.ShortCode.MaxAttempts < 1 {
		return fmt.Errorf("%w: short_code.max_attempts must be positive", ErrInvalidConfig)
	}

	if c.Link.OperationTimeout <= 0 {
		return fmt.Errorf("%w: link.operation_timeout must be positive", ErrInvalidConfig)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", ErrInvalidConfig)
	}

	if c.Accounting.QueueSize < 1 || c.Accounting.Workers < 1 || c.Accounting.BatchSize < 1 {
		return fmt.Errorf("%w: accounting queue_size, workers and batch_size must be positive", ErrInvalidConfig)
	}
	if c.Accounting.FlushInterval <= 0 || c.Accounting.WriteTimeout <= 0 {
		return fmt.Errorf("%w: accounting flush_interval and write_timeout must be positive", ErrInvalidConfig)
	}

	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("%w: rate_limit.requests must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("%w: rate_limit.window must be positive", ErrInvalidConfig)
	}

	if c.Postgres.URL == "" && (c.Postgres.User == "" || c.Postgres.DB == "") {
		return fmt.Errorf("%w: postgres.url or postgres.user and postgres.db are required", ErrInvalidConfig)
	}

	return nil
}
