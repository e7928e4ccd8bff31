package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// allowedRangeDays is the closed set of eligibility windows the sweeper accepts.
var allowedRangeDays = map[int]bool{7: true, 15: true, 30: true}

type Config struct {
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Upstream UpstreamConfig
	Sweeper  SweeperConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// UpstreamConfig points at the remote service and its OAuth token endpoint.
type UpstreamConfig struct {
	ProbeBaseURL   string
	TokenURL       string
	RefreshTimeout time.Duration
	ProbeTimeout   time.Duration
}

// SweeperConfig governs the periodic account health-check sweep.
type SweeperConfig struct {
	Enabled      bool
	Interval     time.Duration
	InitialDelay time.Duration
	MaxAccounts  int
	Concurrency  int
	RangeDays    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Upstream = UpstreamConfig{
		ProbeBaseURL:   v.GetString("PROBE_BASE_URL"),
		TokenURL:       v.GetString("OAUTH_TOKEN_URL"),
		RefreshTimeout: parseDuration(v.GetString("OAUTH_REFRESH_TIMEOUT"), 60*time.Second),
		ProbeTimeout:   parseDuration(v.GetString("PROBE_TIMEOUT"), 30*time.Second),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:      v.GetBool("SWEEPER_ENABLED"),
		Interval:     time.Duration(maxInt(60, v.GetInt("SWEEPER_INTERVAL_SECONDS"))) * time.Second,
		InitialDelay: time.Duration(maxInt(1000, v.GetInt("SWEEPER_INITIAL_DELAY_MS"))) * time.Millisecond,
		MaxAccounts:  maxInt(10, v.GetInt("SWEEPER_MAX_ACCOUNTS")),
		Concurrency:  clampInt(v.GetInt("SWEEPER_CONCURRENCY"), 1, 10),
		RangeDays:    normaliseRangeDays(v.GetInt("SWEEPER_RANGE_DAYS")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "team_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROBE_BASE_URL", "https://chatgpt.com")
	v.SetDefault("OAUTH_TOKEN_URL", "https://auth.openai.com/oauth/token")
	v.SetDefault("OAUTH_REFRESH_TIMEOUT", "60s")
	v.SetDefault("PROBE_TIMEOUT", "30s")

	v.SetDefault("SWEEPER_ENABLED", false)
	v.SetDefault("SWEEPER_INTERVAL_SECONDS", 1800)
	v.SetDefault("SWEEPER_INITIAL_DELAY_MS", 20000)
	v.SetDefault("SWEEPER_MAX_ACCOUNTS", 300)
	v.SetDefault("SWEEPER_CONCURRENCY", 3)
	v.SetDefault("SWEEPER_RANGE_DAYS", 30)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func normaliseRangeDays(days int) int {
	if allowedRangeDays[days] {
		return days
	}
	return 30
}

func maxInt(floor, value int) int {
	if value < floor {
		return floor
	}
	return value
}

func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
