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
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Game      GameConfig      `mapstructure:"game"`
	Flood     FloodConfig     `mapstructure:"flood"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
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

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// GameConfig holds round timing and rendering configuration.
type GameConfig struct {
	// AnswerTimeout is how long players have to answer after the
	// variants are shown.
	AnswerTimeout time.Duration `mapstructure:"answer_timeout"`
	// VariantsDelay is the pause between showing the question text and
	// showing the answer variants.
	VariantsDelay time.Duration `mapstructure:"variants_delay"`
	// RevealPause is the pause before the round summary is sent.
	RevealPause time.Duration `mapstructure:"reveal_pause"`
	// ScoreboardSize is how many players the round scoreboard shows.
	ScoreboardSize int `mapstructure:"scoreboard_size"`
}

// FloodConfig holds rate-limit backoff configuration.
type FloodConfig struct {
	// RetryInterval is the fixed sleep between retries of a rate-limited
	// send or edit.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	// Cooldown is how long a conversation stays gated after a rate limit
	// was last reported.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// SchedulerConfig holds background task registry configuration.
type SchedulerConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
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

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, GAME_ANSWER_TIMEOUT.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "quizbot")
	v.SetDefault("database.name", "quizbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("game.answer_timeout", "30s")
	v.SetDefault("game.variants_delay", "3s")
	v.SetDefault("game.reveal_pause", "2s")
	v.SetDefault("game.scoreboard_size", 5)

	v.SetDefault("flood.retry_interval", "30s")
	v.SetDefault("flood.cooldown", "3m")

	v.SetDefault("scheduler.sweep_interval", "1m")
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed.
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
