package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Export   ExportConfig   `mapstructure:"export"`
}

type BackendConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"` // points per /probabilities page
}

type WSConfig struct {
	URL              string        `mapstructure:"url"` // e.g. ws://localhost:8000
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
}

// ChartConfig controls the live chart updater.
type ChartConfig struct {
	Throttle time.Duration `mapstructure:"throttle"` // flush window for streamed points
	Record   bool          `mapstructure:"record"`   // mirror applied points into Postgres
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"

	// rotation of OutputFile
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"` // empty disables the cache
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	var paths []string
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		paths = append(paths, filepath.Join(pwd, "../../config"))
	} else {
		paths = append(paths, filepath.Join(filepath.Dir(ex), "../config"))
	}
	paths = append(paths, "./config", ".")

	cfg, err := LoadFrom(paths...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom reads config.yaml from the first matching path. A missing file is
// not an error: defaults and environment variables still apply.
func LoadFrom(paths ...string) (*Config, error) {
	// .env is optional; values already in the environment win
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	// Support environment variables with dot notation (e.g., BACKEND_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.rest.base_url", "http://localhost:8000")
	v.SetDefault("backend.rest.timeout", 10*time.Second)
	v.SetDefault("backend.rest.page_size", 1000)
	v.SetDefault("backend.ws.url", "ws://localhost:8000")
	v.SetDefault("backend.ws.handshake_timeout", 10*time.Second)
	v.SetDefault("backend.ws.ping_interval", 30*time.Second)
	v.SetDefault("backend.ws.reconnect_delay", 3*time.Second)

	v.SetDefault("chart.throttle", 100*time.Millisecond)
	v.SetDefault("chart.record", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.dbname", "probchart")

	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("redis.prefix", "probchart")

	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.width", 1280)
	v.SetDefault("export.height", 640)
}
