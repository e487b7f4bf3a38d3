package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ibarwick/config-log/internal/domain/model"

	"github.com/joho/godotenv"
)

const (
	DefaultEnvFile = ".env"
	DefaultNaptime = 100 * time.Second
	DefaultLockTTL = 300 * time.Second
)

type Config struct {
	EnvFile string

	// Task is restart-only, like the other connection settings below.
	Task model.TaskConfig

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSslMode  string

	Naptime      time.Duration
	RestartDelay time.Duration
	HostPID      int
	Verbose      bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	ReloadChannel string
	EventsKey     string
	EventsMax     int

	HTTPAddr string
	JWTKey   []byte
	JWTExp   time.Duration
}

var AppConfig *Config

// Load reads envFile (if present) into the environment and builds the
// configuration from it. A missing file is not an error.
func Load(envFile string) *Config {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("INFO: No %s file found, relying on environment variables", envFile)
	}
	AppConfig = fromEnv(envFile)
	for _, w := range AppConfig.checkTimeouts() {
		log.Printf("WARN: %s", w)
	}
	return AppConfig
}

// Reload re-reads the env file, overriding previously loaded values, and
// returns the new configuration. Restart-only settings keep their current
// value; the names of any that changed are returned so the caller can warn.
func (c *Config) Reload() (*Config, []string, error) {
	if err := godotenv.Overload(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, nil, fmt.Errorf("config.Reload: %w", err)
	}
	next := fromEnv(c.EnvFile)

	var ignored []string
	keep := func(name string, changed bool) {
		if changed {
			ignored = append(ignored, name)
		}
	}
	keep("CONFIG_LOG_DATABASE", next.Task.Database != c.Task.Database)
	keep("CONFIG_LOG_SCHEMA", next.Task.Schema != c.Task.Schema)
	keep("DB_HOST", next.DBHost != c.DBHost)
	keep("DB_PORT", next.DBPort != c.DBPort)
	keep("DB_USER", next.DBUser != c.DBUser)
	keep("DB_PASSWORD", next.DBPassword != c.DBPassword)
	keep("DB_SSLMODE", next.DBSslMode != c.DBSslMode)
	keep("REDIS_ADDR", next.RedisAddr != c.RedisAddr)
	keep("CONFIG_LOG_LOCK_TTL", next.LockTTL != c.LockTTL)
	keep("CONFIG_LOG_HTTP_ADDR", next.HTTPAddr != c.HTTPAddr)

	next.Task = c.Task
	next.DBHost, next.DBPort, next.DBUser = c.DBHost, c.DBPort, c.DBUser
	next.DBPassword, next.DBSslMode = c.DBPassword, c.DBSslMode
	next.RedisAddr, next.RedisPassword, next.RedisDB = c.RedisAddr, c.RedisPassword, c.RedisDB
	next.LockTTL = c.LockTTL
	next.HTTPAddr = c.HTTPAddr
	next.HostPID = c.HostPID

	for _, w := range next.checkTimeouts() {
		log.Printf("WARN: %s", w)
	}

	AppConfig = next
	return next, ignored, nil
}

// checkTimeouts replaces unusable wait and lease durations and returns a
// warning for each change. The wait must be positive, and with Redis
// configured it must be shorter than the lock lease, otherwise the lease
// expires between two refreshes.
func (c *Config) checkTimeouts() []string {
	var warnings []string
	if c.Naptime <= 0 {
		warnings = append(warnings, fmt.Sprintf("CONFIG_LOG_NAPTIME must be positive, using %s", DefaultNaptime))
		c.Naptime = DefaultNaptime
	}
	if c.LockTTL <= 0 {
		warnings = append(warnings, fmt.Sprintf("CONFIG_LOG_LOCK_TTL must be positive, using %s", DefaultLockTTL))
		c.LockTTL = DefaultLockTTL
	}
	if c.RedisAddr != "" && c.Naptime >= c.LockTTL {
		naptime := c.LockTTL / 2
		warnings = append(warnings, fmt.Sprintf("CONFIG_LOG_NAPTIME %s is not shorter than CONFIG_LOG_LOCK_TTL %s, using %s", c.Naptime, c.LockTTL, naptime))
		c.Naptime = naptime
	}
	return warnings
}

// DBConnStr is the keyword/value connection string for the target database.
func (c *Config) DBConnStr() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.Task.Database +
		" sslmode=" + c.DBSslMode
}

func fromEnv(envFile string) *Config {
	return &Config{
		EnvFile: envFile,
		Task: model.TaskConfig{
			Database: getEnv("CONFIG_LOG_DATABASE", "postgres"),
			Schema:   getEnv("CONFIG_LOG_SCHEMA", "public"),
		},
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		Naptime:      getEnvAsDuration("CONFIG_LOG_NAPTIME", DefaultNaptime),
		RestartDelay: getEnvAsDuration("CONFIG_LOG_RESTART_DELAY", time.Second),
		HostPID:      getEnvAsInt("CONFIG_LOG_HOST_PID", os.Getppid()),
		Verbose:      getEnvAsBool("CONFIG_LOG_VERBOSE", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LockTTL:       getEnvAsDuration("CONFIG_LOG_LOCK_TTL", DefaultLockTTL),
		ReloadChannel: getEnv("CONFIG_LOG_RELOAD_CHANNEL", "config_log:reload"),
		EventsKey:     getEnv("CONFIG_LOG_EVENTS_KEY", "config_log:events"),
		EventsMax:     getEnvAsInt("CONFIG_LOG_EVENTS_MAX", 1000),

		HTTPAddr: getEnv("CONFIG_LOG_HTTP_ADDR", ""),
		JWTKey:   []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:   time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30s") or a bare number of milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(valueStr); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
