// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Roles    RolesConfig    `mapstructure:"roles"`
	Auction  AuctionConfig  `mapstructure:"auction"`
	Log      LogConfig      `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// AuctionChatID is the group that receives live announcements. Zero disables them.
	AuctionChatID int64   `mapstructure:"auction_chat_id"`
	AllowedChats  []int64 `mapstructure:"allowed_chats"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// HTTPConfig holds the console API and live feed server configuration.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig holds the event relay configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// RolesConfig lists Telegram users with elevated roles.
type RolesConfig struct {
	Admins      []int64 `mapstructure:"admins"`
	Auctioneers []int64 `mapstructure:"auctioneers"`
}

// AuctionConfig holds concurrency and pacing settings.
type AuctionConfig struct {
	// LockWait bounds how long non-bid commands wait for the session gate
	// and for row locks.
	LockWait       time.Duration `mapstructure:"lock_wait"`
	PaddleCooldown time.Duration `mapstructure:"paddle_cooldown"`
	RecentBids     int           `mapstructure:"recent_bids"`
	RecentSales    int           `mapstructure:"recent_sales"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslMode,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, HTTP_JWT_SECRET
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Bot.Token == "" && c.HTTP.Addr == "" {
		return fmt.Errorf("invalid config: neither bot.token nor http.addr is set")
	}
	if c.HTTP.Addr != "" && c.HTTP.JWTSecret == "" {
		return fmt.Errorf("invalid config: http.jwt_secret is required when http.addr is set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required when redis is enabled")
	}
	return nil
}

// setDefaults sets default configuration values.
// Keys without a sensible default are still registered so AutomaticEnv can
// bind them during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.auction_chat_id", 0)
	v.SetDefault("bot.allowed_chats", []int64{})

	v.SetDefault("roles.admins", []int64{})
	v.SetDefault("roles.auctioneers", []int64{})

	v.SetDefault("database.password", "")
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "auction")
	v.SetDefault("database.name", "auction")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.token_ttl", "12h")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "auction:events")

	v.SetDefault("auction.lock_wait", "2s")
	v.SetDefault("auction.paddle_cooldown", "1s")
	v.SetDefault("auction.recent_bids", 5)
	v.SetDefault("auction.recent_sales", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// IsChatAllowed checks if a chat ID is in the allow list.
// An empty list allows every chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.Bot.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.Bot.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}
