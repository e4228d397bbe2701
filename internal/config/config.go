package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "HANGOUT"

const devSecret = "hangout-dev-secret-change-me"

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
	RedisURL    string `mapstructure:"redis_url"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode           string            `mapstructure:"mode"`
	Port           int               `mapstructure:"port"`
	StaticPath     string            `mapstructure:"static_path"`
	AllowedOrigins []string          `mapstructure:"allowed_origins"`
	ReadLimit      int64             `mapstructure:"read_limit"`
	PingPeriod     time.Duration     `mapstructure:"ping_period"`
	Secret         string            `mapstructure:"secret"`
	TokenTTL       time.Duration     `mapstructure:"token_ttl"`
	MaxRoomSize    int               `mapstructure:"max_room_size"`
	MaxMessageLen  int               `mapstructure:"max_message_len"`
	MessageRate    RateConfig        `mapstructure:"message_rate"`
	SendBuffer     int               `mapstructure:"send_buffer"`
	Store          StoreConfig       `mapstructure:"store"`
	ICEServers     []ICEServerConfig `mapstructure:"ice_servers"`
}

// NewViper returns a viper instance with every default set, reading
// HANGOUT_* environment variables. Flags may be bound to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("max_room_size", 16)
	v.SetDefault("max_message_len", 1000)
	v.SetDefault("message_rate.limit", 20)
	v.SetDefault("message_rate.interval", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.sqlite_path", "./data/hangout.db")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env, then config/config.<env>.yaml on top of the defaults
// in v. An empty env falls back to CONFIG_ENV, then "dev".
func Load(v *viper.Viper, env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("could not read .env")
	}

	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

// Validate checks ranges and fills in the development secret outside
// release mode.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Secret == "" {
		if c.Mode == "release" {
			return errors.New("secret must be set in release mode (HANGOUT_SECRET)")
		}
		log.Warn().Str("module", "config").Msg("no secret configured, using the development secret")
		c.Secret = devSecret
	}
	if c.MaxRoomSize < 0 || c.MaxMessageLen < 0 || c.SendBuffer < 0 {
		return errors.New("max_room_size, max_message_len and send_buffer must not be negative")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	switch c.Store.Driver {
	case "", "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
