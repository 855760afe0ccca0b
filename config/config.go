package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`           // ":4000"
	ReadTimeout    time.Duration `yaml:"readTimeout"`    // "15s"
	WriteTimeout   time.Duration `yaml:"writeTimeout"`   // "30s"
	IdleTimeout    time.Duration `yaml:"idleTimeout"`    // "60s"
	RequestTimeout time.Duration `yaml:"requestTimeout"` // REST, не сокет
}

type GRPC struct {
	Addr         string        `yaml:"addr"` // пусто — gRPC выключен
	CallTimeout  time.Duration `yaml:"callTimeout"`
	HealthPeriod time.Duration `yaml:"healthPeriod"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // roomsync
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`
}

type SQLite struct {
	Path string `yaml:"path"` // ./data/rooms.db или :memory:
}

type Redis struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

type Store struct {
	Driver   string   `yaml:"driver"` // memory|postgres|sqlite|redis
	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
	Redis    Redis    `yaml:"redis"`
}

type WS struct {
	PingPeriod        time.Duration `yaml:"pingPeriod"`
	WriteWait         time.Duration `yaml:"writeWait"`
	MaxMessageSize    int64         `yaml:"maxMessageSize"`
	SendBuffer        int           `yaml:"sendBuffer"`
	MessagesPerSecond float64       `yaml:"messagesPerSecond"`
	Burst             int           `yaml:"burst"`
	MaxViolations     int           `yaml:"maxViolations"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	WS      WS      `yaml:"ws"`
	CORS    CORS    `yaml:"cors"`
}

// LoadConfig читает CONFIG_PATH (по умолчанию ./config/config.yaml).
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает yaml, накладывает env (PORT, CLIENT_ORIGIN) и дефолты.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + port
	}
	if origins := os.Getenv("CLIENT_ORIGIN"); origins != "" {
		c.CORS.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORS.AllowedOrigins = append(c.CORS.AllowedOrigins, o)
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			c.Store.SQLite.Path = "./data/rooms.db"
		}
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":4000"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.GRPC.HealthPeriod == 0 {
		c.GRPC.HealthPeriod = 10 * time.Second
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "roomsync"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}
