package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// DiscordConfig holds the chat-platform connection settings
type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	GuildID string `mapstructure:"guild_id"` // empty registers commands globally
}

// CatalogConfig holds static content settings
type CatalogConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// AssetsConfig holds image hosting settings
type AssetsConfig struct {
	Dir             string `mapstructure:"dir"`
	UseExternal     bool   `mapstructure:"use_external"`
	ExternalBaseURL string `mapstructure:"external_base_url"`
	CheckOnStart    bool   `mapstructure:"check_on_start"`
	Timeout         int    `mapstructure:"timeout"` // seconds, external asset probes
}

// SessionConfig holds private-session policy
type SessionConfig struct {
	IdleTimeout      int `mapstructure:"idle_timeout"`       // seconds
	SweepInterval    int `mapstructure:"sweep_interval"`     // seconds
	MaxEditPerSecond int `mapstructure:"max_edit_per_second"` // refresh workers
	MaxWorkers       int `mapstructure:"max_workers"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"` // seconds, auto-claim threshold
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Discord.Token == "" {
		return nil, fmt.Errorf("discord.token is required")
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.guild_id", "")

	viper.SetDefault("catalog.data_dir", "./data")

	viper.SetDefault("assets.dir", "./assets")
	viper.SetDefault("assets.use_external", false)
	viper.SetDefault("assets.external_base_url", "")
	viper.SetDefault("assets.check_on_start", false)
	viper.SetDefault("assets.timeout", 10)

	// Private views of the original expire after 5 minutes
	viper.SetDefault("session.idle_timeout", 300)
	viper.SetDefault("session.sweep_interval", 60)
	viper.SetDefault("session.max_edit_per_second", 2)
	viper.SetDefault("session.max_workers", 4)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "contentbot")
	viper.SetDefault("database.user", "contentbot_user")
	viper.SetDefault("database.password", "contentbot_pass")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.consumer_group", "contentbot_consumer")
	viper.SetDefault("redis.min_idle_time", 120)
}
