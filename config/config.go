package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    Server
	Database  Database
	Redis     Redis
	Cache     CacheTTL
	JWTSecret string
	Sweeper   Sweeper
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

// CacheTTL holds per-purpose cache lifetimes. Frequently-changing reads get
// short TTLs, expensive aggregates get long ones.
type CacheTTL struct {
	Attempt    time.Duration
	List       time.Duration
	Validation time.Duration
	Stats      time.Duration
}

type Sweeper struct {
	Enabled  bool
	Schedule string
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_ATTEMPT_TTL", "5m")
	viper.SetDefault("CACHE_LIST_TTL", "2m")
	viper.SetDefault("CACHE_VALIDATION_TTL", "5m")
	viper.SetDefault("CACHE_STATS_TTL", "30m")
	viper.SetDefault("SWEEPER_ENABLED", true)
	viper.SetDefault("SWEEPER_SCHEDULE", "@every 1m")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.Cache.Attempt = viper.GetDuration("CACHE_ATTEMPT_TTL")
	config.Cache.List = viper.GetDuration("CACHE_LIST_TTL")
	config.Cache.Validation = viper.GetDuration("CACHE_VALIDATION_TTL")
	config.Cache.Stats = viper.GetDuration("CACHE_STATS_TTL")

	config.JWTSecret = viper.GetString("JWT_SECRET")

	config.Sweeper.Enabled = viper.GetBool("SWEEPER_ENABLED")
	config.Sweeper.Schedule = viper.GetString("SWEEPER_SCHEDULE")

	log.Info().Str("port", config.Server.Port).Str("redis", config.Redis.Addr).Msg("Config loaded")
	return &config, nil
}
