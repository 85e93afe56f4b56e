// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Card     CardConfig     `mapstructure:"card"`
	Game     GameConfig     `mapstructure:"game"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Bot      BotConfig      `mapstructure:"bot"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	StaticDir       string        `mapstructure:"static_dir"`
	AvatarsDir      string        `mapstructure:"avatars_dir"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection configuration.
// With Enabled false the records live in memory only.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// CardConfig holds the greeting card deployment settings.
type CardConfig struct {
	ManifestPath string        `mapstructure:"manifest_path"`
	OwnerKey     string        `mapstructure:"owner_key"`
	Year         string        `mapstructure:"year"`
	VisitTTL     time.Duration `mapstructure:"visit_ttl"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
}

// GameConfig holds the identity aliases the minigame rules depend on.
type GameConfig struct {
	ExemptKeys           []string `mapstructure:"exempt_keys"`
	ExemptLabels         []string `mapstructure:"exempt_labels"`
	ExemptLabelFragments []string `mapstructure:"exempt_label_fragments"`
	RingLabelFragment    string   `mapstructure:"ring_label_fragment"`
	BraceletKey          string   `mapstructure:"bracelet_key"`
	MiddleTierFragment   string   `mapstructure:"middle_tier_fragment"`
}

// SMTPConfig holds outbound mail configuration.
type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	From    string        `mapstructure:"from"`
	To      string        `mapstructure:"to"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BotConfig holds Telegram bot configuration. An empty token disables the bot.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// AdminConfig holds owner dashboard configuration.
type AdminConfig struct {
	IDs           []int64       `mapstructure:"ids"`
	PasswordHash  string        `mapstructure:"password_hash"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., SERVER_PORT, DATABASE_HOST, SMTP_PASS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Card.Year == "" {
		cfg.Card.Year = fmt.Sprint(time.Now().Year())
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.avatars_dir", "avatars")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "20s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "lunarcard")
	v.SetDefault("database.name", "lunarcard")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Card defaults
	v.SetDefault("card.manifest_path", "avatars/people.json")
	v.SetDefault("card.owner_key", "default")
	v.SetDefault("card.visit_ttl", "6h")
	v.SetDefault("card.task_timeout", "15s")

	// Game defaults
	v.SetDefault("game.exempt_keys", []string{"ethereal", "aq"})
	v.SetDefault("game.exempt_labels", []string{"aq"})
	v.SetDefault("game.exempt_label_fragments", []string{"anh quynh"})
	v.SetDefault("game.ring_label_fragment", "hong nhung")
	v.SetDefault("game.bracelet_key", "bexinh")
	v.SetDefault("game.middle_tier_fragment", "gia truong")

	// SMTP defaults
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout", "8s")

	// Admin defaults
	v.SetDefault("admin.token_lifetime", "24h")

	v.SetDefault("log.level", "info")
}

// IsAdmin checks if a Telegram user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
