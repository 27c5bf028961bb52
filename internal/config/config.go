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
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Battle    BattleConfig    `mapstructure:"battle"`
	Titles    []TitleConfig   `mapstructure:"titles"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // file, postgres, redis, memory
	Path     string         `mapstructure:"path"`
	Name     string         `mapstructure:"name"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ScoringConfig holds the standard-mode scoring constants.
type ScoringConfig struct {
	Correct               int     `mapstructure:"correct"`
	Wrong                 int     `mapstructure:"wrong"`
	StreakBonusMultiplier float64 `mapstructure:"streak_bonus_multiplier"`
}

// BattleConfig holds battle mode configuration.
type BattleConfig struct {
	Size int `mapstructure:"size"`
}

// TitleConfig is one row of the rank title table.
type TitleConfig struct {
	Threshold int    `mapstructure:"threshold"`
	Name      string `mapstructure:"name"`
}

// AnalysisConfig holds the external game-analysis API configuration.
type AnalysisConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTTPConfig holds the status API configuration. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// DefaultScoring returns the standard scoring constants.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{Correct: 8, Wrong: -16, StreakBonusMultiplier: 0.2}
}

// DefaultTitles returns the built-in rank table, highest threshold first.
func DefaultTitles() []TitleConfig {
	return []TitleConfig{
		{Threshold: 2000, Name: "Grandmaster"},
		{Threshold: 1200, Name: "International Master"},
		{Threshold: 800, Name: "FIDE Master"},
		{Threshold: 500, Name: "Candidate Master"},
		{Threshold: 250, Name: "Expert"},
		{Threshold: 100, Name: "Club Player"},
		{Threshold: 30, Name: "Amateur"},
		{Threshold: 0, Name: "Beginner"},
	}
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, STORAGE_DRIVER, STORAGE_DATABASE_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Titles) == 0 {
		cfg.Titles = DefaultTitles()
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")
	v.SetDefault("bot.send_timeout", "15s")

	v.SetDefault("log.level", "info")

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "data/puzzles.json")
	v.SetDefault("storage.name", "main")

	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.user", "puzzlebot")
	v.SetDefault("storage.database.name", "puzzlebot")
	v.SetDefault("storage.database.pool_size", 4)
	v.SetDefault("storage.database.connect_timeout", "10s")
	v.SetDefault("storage.database.max_conn_lifetime", "1h")
	v.SetDefault("storage.database.max_conn_idle_time", "30m")

	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.prefix", "puzzlebot")

	scoring := DefaultScoring()
	v.SetDefault("scoring.correct", scoring.Correct)
	v.SetDefault("scoring.wrong", scoring.Wrong)
	v.SetDefault("scoring.streak_bonus_multiplier", scoring.StreakBonusMultiplier)

	v.SetDefault("battle.size", 5)

	v.SetDefault("analysis.timeout", "45s")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
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
