package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	ReadTimeoutSec    int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec   int    `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec    int    `mapstructure:"idle_timeout_sec"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	MaxBodyBytes      int64  `mapstructure:"max_body_bytes"`
}

type App struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	HTTP        HTTP     `mapstructure:"http"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogFile struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Log struct {
	Level string  `mapstructure:"level"`
	JSON  bool    `mapstructure:"json"`
	File  LogFile `mapstructure:"file"`
}

type JWT struct {
	Secret            string `mapstructure:"secret"`
	Issuer            string `mapstructure:"issuer"`
	AccessTokenTTLMin int    `mapstructure:"access_token_ttl_min"`
}

type Auth struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DB covers both the gorm drivers (postgres, mysql, sqlite) and mongo.
type DB struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	Database           string `mapstructure:"database"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type RateLimit struct {
	GlobalRPS      float64 `mapstructure:"global_rps"`
	GlobalBurst    int     `mapstructure:"global_burst"`
	MaxConcurrency int64   `mapstructure:"max_concurrency"`
	WindowSec      int     `mapstructure:"window_sec"`
	MaxPerWindow   int     `mapstructure:"max_per_window"`
}

type Analytics struct {
	CacheTTLSec int `mapstructure:"cache_ttl_sec"`
}

type Config struct {
	App       App       `mapstructure:"app"`
	Log       Log       `mapstructure:"log"`
	JWT       JWT       `mapstructure:"jwt"`
	Auth      Auth      `mapstructure:"auth"`
	DB        DB        `mapstructure:"db"`
	Redis     Redis     `mapstructure:"redis"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Analytics Analytics `mapstructure:"analytics"`
}

const defaultPath = "./configs/config.local.yaml"

// Load reads the YAML file at path (falling back to CONFIG_PATH and then the
// local default) and applies APP_* environment overrides. A missing file is
// not an error: defaults plus environment are enough to boot.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = defaultPath
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "project-tracker")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 5000)
	v.SetDefault("app.http.read_timeout_sec", 10)
	v.SetDefault("app.http.write_timeout_sec", 15)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.http.request_timeout_sec", 10)
	v.SetDefault("app.http.max_body_bytes", 10<<20)
	v.SetDefault("app.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/api.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "project-tracker")
	v.SetDefault("jwt.access_token_ttl_min", 24*60)

	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:project-tracker.db?_busy_timeout=5000")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.database", "project-tracker")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.global_rps", 200)
	v.SetDefault("ratelimit.global_burst", 400)
	v.SetDefault("ratelimit.max_concurrency", 300)
	v.SetDefault("ratelimit.window_sec", 15*60)
	v.SetDefault("ratelimit.max_per_window", 100)

	v.SetDefault("analytics.cache_ttl_sec", 0)
}

// Validate rejects configurations the server cannot run safely with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.App.Env != "dev" {
			return errors.New("config: jwt.secret is required outside dev")
		}
		c.JWT.Secret = "dev-only-secret"
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		return errors.New("config: jwt.access_token_ttl_min must be positive")
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite", "mongo":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.RateLimit.WindowSec <= 0 || c.RateLimit.MaxPerWindow <= 0 {
		return errors.New("config: ratelimit window and max must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool { return c.App.Env == "dev" }
