package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Timetable TimetableConfig
	Export    ExportConfig
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

	// ApplicationName tags the connection in pg_stat_activity.
	ApplicationName string
	ConnectTimeout  time.Duration
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	ClientName  string
	DialTimeout time.Duration

	// PoolSize defaults to the invalidation workers plus the CLI's own
	// connection and one spare.
	PoolSize int
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig tunes the scheduling engine and the services around it.
type TimetableConfig struct {
	DefaultPolicy      int
	ConferenceParallel bool
	SessionParallel    bool
	SlotParallel       bool
	MaxCascadeDepth    int
	CacheEnabled       bool
	CacheTTL           time.Duration
	NotifyWorkers      int
	NotifyRetries      int
}

// ExportConfig controls where rendered timetables are written and how long
// they are kept.
type ExportConfig struct {
	Dir       string
	ResultTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ApplicationName: v.GetString("DB_APPLICATION_NAME"),
		ConnectTimeout:  parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		ClientName:  v.GetString("REDIS_CLIENT_NAME"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	policy := v.GetInt("TIMETABLE_DEFAULT_POLICY")
	if policy < 0 || policy > 2 {
		policy = 2
	}
	depth := v.GetInt("TIMETABLE_MAX_CASCADE_DEPTH")
	if depth <= 0 {
		depth = 8
	}
	workers := v.GetInt("TIMETABLE_NOTIFY_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Timetable = TimetableConfig{
		DefaultPolicy:      policy,
		ConferenceParallel: v.GetBool("TIMETABLE_CONFERENCE_PARALLEL"),
		SessionParallel:    v.GetBool("TIMETABLE_SESSION_PARALLEL"),
		SlotParallel:       v.GetBool("TIMETABLE_SLOT_PARALLEL"),
		MaxCascadeDepth:    depth,
		CacheEnabled:       v.GetBool("TIMETABLE_CACHE_ENABLED"),
		CacheTTL:           parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 10*time.Minute),
		NotifyWorkers:      workers,
		NotifyRetries:      v.GetInt("TIMETABLE_NOTIFY_RETRIES"),
	}
	if cfg.Redis.PoolSize <= 0 {
		cfg.Redis.PoolSize = workers + 2
	}

	cfg.Export = ExportConfig{
		Dir:       v.GetString("EXPORT_DIR"),
		ResultTTL: parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "event_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_APPLICATION_NAME", "event-timetable")
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CLIENT_NAME", "event-timetable")
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_DEFAULT_POLICY", 2)
	v.SetDefault("TIMETABLE_CONFERENCE_PARALLEL", true)
	v.SetDefault("TIMETABLE_SESSION_PARALLEL", true)
	v.SetDefault("TIMETABLE_SLOT_PARALLEL", false)
	v.SetDefault("TIMETABLE_MAX_CASCADE_DEPTH", 8)
	v.SetDefault("TIMETABLE_CACHE_ENABLED", false)
	v.SetDefault("TIMETABLE_CACHE_TTL", "10m")
	v.SetDefault("TIMETABLE_NOTIFY_WORKERS", 2)
	v.SetDefault("TIMETABLE_NOTIFY_RETRIES", 3)

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")
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
